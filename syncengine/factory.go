package syncengine

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/booksync/connector"
	"github.com/mmdatafocus/booksync/connector/pitix"
	"github.com/mmdatafocus/booksync/models"
)

// ConnectorFactory builds an AccountingConnector for an organization from its
// stored integration connection. The caller owns the returned connector and
// must Close it.
type ConnectorFactory interface {
	ConnectorFor(ctx context.Context, organizationId string) (connector.AccountingConnector, uint, string, error)
}

type storeFactory struct {
	store Store
}

func NewConnectorFactory(store Store) ConnectorFactory {
	return &storeFactory{store: store}
}

func (f *storeFactory) ConnectorFor(ctx context.Context, organizationId string) (connector.AccountingConnector, uint, string, error) {
	conn, err := f.store.GetConnection(ctx, organizationId)
	if err != nil {
		return nil, 0, "", err
	}
	if conn == nil || conn.Status != models.IntegrationStatusConnected {
		return nil, 0, "", models.ErrNoActiveIntegration
	}

	switch conn.Provider {
	case models.IntegrationProviderPitiX:
		ac, err := pitix.NewConnector(conn.AuthSecretRef)
		if err != nil {
			return nil, 0, "", err
		}
		return ac, conn.ID, conn.Provider, nil
	default:
		return nil, 0, "", fmt.Errorf("unknown integration provider %q", conn.Provider)
	}
}
