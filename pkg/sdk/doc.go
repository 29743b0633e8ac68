// Package legalrag embeds the legal retrieval pipeline in a Go program.
//
// The caller supplies the embedding and chat capabilities; the client keeps
// an in-memory index that can be persisted to disk and reloaded.
//
//	client, _ := legalrag.New(
//	    legalrag.WithEmbedder(emb),
//	    legalrag.WithChatter(chat),
//	    legalrag.WithIndexPath("data/index/legal"),
//	)
//	_, _ = client.Ingest(ctx, docs)
//	hits, _ := client.Search(ctx, "governing law", legalrag.TopK(3),
//	    legalrag.Filter("jurisdiction", "CA"))
//	ans, _ := client.Answer(ctx, "Is this non-compete enforceable?", legalrag.UseRouter())
package legalrag
