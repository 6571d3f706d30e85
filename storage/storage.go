package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"prism-projects/domain"
)

const edmInt64 = "Edm.Int64"

// maxPropertyBytes is the Azure Tables limit for a single string property.
const maxPropertyBytes = 64 * 1024

type tableClient interface {
	CreateTable(ctx context.Context, options *aztables.CreateTableOptions) (aztables.CreateTableResponse, error)
	AddEntity(ctx context.Context, entity []byte, options *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
	GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
	UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
	DeleteEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
	NewListEntitiesPager(options *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse]
}

// Tables names the Azure tables backing the stores.
type Tables struct {
	Projects    string
	Accounts    string
	Memberships string
}

// Storage keeps project documents and the account index in Azure Table storage.
// It implements both projects.ProjectStore and projects.AccountIndex.
type Storage struct {
	projectTable    tableClient
	accountTable    tableClient
	membershipTable tableClient
	now             func() time.Time
}

// New creates a Storage instance from the given connection string.
func New(connStr string, tables Tables) (*Storage, error) {
	if tables.Projects == "" || tables.Accounts == "" || tables.Memberships == "" {
		return nil, errors.New("storage: table names are required")
	}
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		projectTable:    svc.NewClient(tables.Projects),
		accountTable:    svc.NewClient(tables.Accounts),
		membershipTable: svc.NewClient(tables.Memberships),
		now:             time.Now,
	}, nil
}

// CreateTables creates the backing tables, ignoring ones that already exist.
func (s *Storage) CreateTables(ctx context.Context) error {
	for _, c := range []tableClient{s.projectTable, s.accountTable, s.membershipTable} {
		if _, err := c.CreateTable(ctx, nil); err != nil {
			var respErr *azcore.ResponseError
			if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
				return err
			}
		}
	}
	return nil
}

// entityKeys is the key pair shared by every stored entity.
type entityKeys struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

func statusCode(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

// classify maps table service failures onto the domain error sentinels.
func classify(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	what := fmt.Sprintf(format, args...)
	switch statusCode(err) {
	case 404:
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	case 409:
		return fmt.Errorf("%s: %w", what, domain.ErrDuplicate)
	case 412:
		return fmt.Errorf("%s: %w", what, domain.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

// partitionFilter builds an OData filter on PartitionKey, escaping quotes.
func partitionFilter(pk string) string {
	return "PartitionKey eq '" + strings.ReplaceAll(pk, "'", "''") + "'"
}
