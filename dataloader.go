package main

import (
	"context"
	"time"

	"github.com/graph-gophers/dataloader/v7"
)

// profileBatchFn loads many profiles in one store round trip. Handlers that
// fan out over peer lists (chat summary) build a per-request loader from it
// so concurrent lookups collapse into a single query.
func profileBatchFn(st Store) dataloader.BatchFunc[int, *Profile] {
	return func(ctx context.Context, keys []int) []*dataloader.Result[*Profile] {
		results := make([]*dataloader.Result[*Profile], len(keys))
		for i := range results {
			results[i] = &dataloader.Result[*Profile]{}
		}
		if len(keys) == 0 {
			return results
		}

		profiles, err := st.ProfilesByIDs(ctx, keys)
		if err != nil {
			for i := range results {
				results[i].Error = err
			}
			return results
		}

		for i, key := range keys {
			if p, ok := profiles[key]; ok {
				cp := p
				results[i].Data = &cp
			}
			// Missing profiles stay nil without an error: a peer without a
			// profile row still shows up in the summary.
		}
		return results
	}
}

func newProfileLoader(st Store) *dataloader.Loader[int, *Profile] {
	return dataloader.NewBatchedLoader(
		profileBatchFn(st),
		dataloader.WithWait[int, *Profile](4*time.Millisecond),
	)
}
