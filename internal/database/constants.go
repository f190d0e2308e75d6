package database

// FaceEmbeddingDim is the fixed dimension of face embeddings (512 for TraceNet).
const FaceEmbeddingDim = 512

// DefaultNeighbors is the number of nearest enrolled faces fetched per probe face.
// More than one is needed to detect ambiguity against a second identity.
const DefaultNeighbors = 5
