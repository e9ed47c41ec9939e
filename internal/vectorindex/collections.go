package vectorindex

import (
	"morph/internal/storage"
)

// NoteCollection is the index over note embeddings for schema.
func NoteCollection(schema storage.EmbedSchema) Collection {
	return collectionFor(schema, schema.NoteTable())
}

// EssayCollection is the index over essay chunk embeddings for schema.
func EssayCollection(schema storage.EmbedSchema) Collection {
	return collectionFor(schema, schema.EssayTable())
}

func collectionFor(schema storage.EmbedSchema, table string) Collection {
	return Collection{
		Name:           storage.IndexName(table),
		Dimensions:     schema.Dimensions,
		M:              schema.M,
		EfConstruction: schema.EfConstruction,
	}
}

// ChunkPointID is the point id of one essay chunk.
func ChunkPointID(vaultID, fileID, nodeID string) string {
	return vaultID + "/" + fileID + "/" + nodeID
}
