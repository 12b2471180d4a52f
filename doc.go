// Package vecrag builds and queries a retrieval index over a directory of
// text documents.
//
// # Quick Start
//
// Build:
//
//	gw, _ := openai.NewRegistry().New("siliconflow", cfg.Embedding.ProviderConfig())
//	dir, _ := vecrag.Vectorize(ctx, "./corpus", cfg.Vectorize, gw, cfg.Embedding.ModelName)
//
// Query:
//
//	s, _ := vecrag.Open(ctx, dir)
//	ids, _ := s.SearchByText(ctx, gw, "question", cfg.Embedding.ModelName, 5)
//
// # Pipeline
//
// Vectorize reads every *.txt file below the source directory, strips all
// whitespace, and cuts the text into chunks at sentence boundaries. The
// chunks are embedded in rate-limited batches; a batch that fails for any
// reason but an empty answer is split and its chunks retried one by one.
// The resulting chunk to vector map is L2-normalized and stored as an exact index, or as
// an IVF index above 50,000 vectors, in <source>/../vector.
//
// # Index layout
//
//	index.vidx        header + index payload
//	id_mapping.json   JSON array, position i names vector i
//	vector.json       optional dump of the raw vectors
//	debug.txt         optional dump of the chunks
//
// Scores are cosine similarities. Searchers are immutable and safe for
// concurrent use.
package vecrag
