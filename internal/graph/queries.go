package graph

// Cypher query constants for Neo4j operations.
const (
	// CreateConstraintComponentUUID ensures Component(uuid) is unique and indexed (required for fast MERGE/MATCH).
	CreateConstraintComponentUUID = `CREATE CONSTRAINT component_uuid IF NOT EXISTS FOR (c:Component) REQUIRE c.uuid IS UNIQUE`

	// CreateFulltextComponentIndex backs component search by key and name.
	CreateFulltextComponentIndex = `CREATE FULLTEXT INDEX component_search IF NOT EXISTS FOR (c:Component) ON EACH [c.key, c.name]`

	// UpsertComponentNode merges a component node by its uuid and sets all properties.
	UpsertComponentNode = `
UNWIND $components AS comp
MERGE (c:Component {uuid: comp.uuid})
SET c.key = comp.key,
    c.name = comp.name,
    c.path = comp.path,
    c.qualifier = comp.qualifier,
    c.depth = comp.depth,
    c.rootUuid = comp.rootUuid
`

	// LinkComponentToParent replaces the CONTAINS relationship pointing at each component.
	LinkComponentToParent = `
UNWIND $components AS comp
MATCH (c:Component {uuid: comp.uuid})
OPTIONAL MATCH (old:Component)-[r:CONTAINS]->(c)
WHERE comp.parentUuid IS NULL OR old.uuid <> comp.parentUuid
DELETE r
WITH DISTINCT c, comp
WHERE comp.parentUuid IS NOT NULL
MATCH (p:Component {uuid: comp.parentUuid})
MERGE (p)-[:CONTAINS]->(c)
`

	// DeleteStaleComponents removes nodes of a root that are no longer part of its tree.
	DeleteStaleComponents = `
MATCH (c:Component {rootUuid: $rootUuid})
WHERE NOT c.uuid IN $keep
DETACH DELETE c
`
)
