package refresh

import (
	"context"
	"fmt"

	"github.com/wrolpi/archivaid/internal/configmirror"
	"github.com/wrolpi/archivaid/internal/model"
	"github.com/wrolpi/archivaid/internal/store"
)

// PruneEmptyDomainCollections implements Open Question (b): after a
// refresh, any domain Collection with zero FileGroups AND no config
// binding is removed. A domain still named in domains.yaml is left alone
// even while empty — it is config the user asked for, just not yet
// populated with an archive — so only a domain that both lost its last
// FileGroup and was dropped from domains.yaml (or never had an entry) gets
// pruned. Idempotent — a Collection already pruned or never created is
// simply absent from ListByKind on the next run, so running this hook
// every cycle is safe.
func PruneEmptyDomainCollections(collections *store.CollectionStore, fileGroups *store.FileGroupStore, mediaConfigDir string) AfterRefreshHook {
	return func(ctx context.Context) error {
		domains, err := collections.ListByKind(ctx, model.CollectionKindDomain)
		if err != nil {
			return fmt.Errorf("refresh: listing domain collections: %w", err)
		}

		bound, err := configmirror.BoundDomainNames(mediaConfigDir)
		if err != nil {
			return fmt.Errorf("refresh: reading domains.yaml bindings: %w", err)
		}

		for _, c := range domains {
			if bound[c.Name] {
				continue
			}

			if c.Directory == nil {
				continue
			}

			count, err := fileGroups.CountUnder(ctx, *c.Directory)
			if err != nil {
				return fmt.Errorf("refresh: counting file_groups under %s: %w", *c.Directory, err)
			}

			if count > 0 {
				continue
			}

			if err := collections.Delete(ctx, c.ID); err != nil {
				return fmt.Errorf("refresh: pruning empty domain collection %d: %w", c.ID, err)
			}
		}

		return nil
	}
}
