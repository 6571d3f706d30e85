package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
)

type fakeRow struct {
	data []byte
	etag azcore.ETag
}

// fakeTable is an in-memory table with ETag semantics.
type fakeTable struct {
	mu       sync.Mutex
	rows     map[string]fakeRow
	version  int
	pageSize int

	// beforeUpdate runs after the caller's read and before UpdateEntity applies.
	beforeUpdate func()
	// beforeDelete runs after the caller's read and before DeleteEntity applies.
	beforeDelete func()
	failGet      error
}

func newFakeTable() *fakeTable {
	return &fakeTable{rows: map[string]fakeRow{}, pageSize: 2}
}

func rowID(pk, rk string) string { return pk + "\x00" + rk }

func (f *fakeTable) nextETag() azcore.ETag {
	f.version++
	return azcore.ETag(fmt.Sprintf("W/\"%d\"", f.version))
}

func keysOf(entity []byte) (entityKeys, error) {
	var k entityKeys
	err := sonic.ConfigStd.Unmarshal(entity, &k)
	return k, err
}

func (f *fakeTable) CreateTable(ctx context.Context, options *aztables.CreateTableOptions) (aztables.CreateTableResponse, error) {
	return aztables.CreateTableResponse{}, nil
}

func (f *fakeTable) AddEntity(ctx context.Context, entity []byte, options *aztables.AddEntityOptions) (aztables.AddEntityResponse, error) {
	k, err := keysOf(entity)
	if err != nil {
		return aztables.AddEntityResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := rowID(k.PartitionKey, k.RowKey)
	if _, ok := f.rows[id]; ok {
		return aztables.AddEntityResponse{}, &azcore.ResponseError{StatusCode: 409, ErrorCode: "EntityAlreadyExists"}
	}
	f.rows[id] = fakeRow{data: slices.Clone(entity), etag: f.nextETag()}
	return aztables.AddEntityResponse{}, nil
}

func (f *fakeTable) GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return aztables.GetEntityResponse{}, f.failGet
	}
	row, ok := f.rows[rowID(partitionKey, rowKey)]
	if !ok {
		return aztables.GetEntityResponse{}, &azcore.ResponseError{StatusCode: 404, ErrorCode: "ResourceNotFound"}
	}
	return aztables.GetEntityResponse{ETag: row.etag, Value: slices.Clone(row.data)}, nil
}

func (f *fakeTable) UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error) {
	if f.beforeUpdate != nil {
		hook := f.beforeUpdate
		f.beforeUpdate = nil
		hook()
	}
	k, err := keysOf(entity)
	if err != nil {
		return aztables.UpdateEntityResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := rowID(k.PartitionKey, k.RowKey)
	row, ok := f.rows[id]
	if !ok {
		return aztables.UpdateEntityResponse{}, &azcore.ResponseError{StatusCode: 404, ErrorCode: "ResourceNotFound"}
	}
	if options != nil && options.IfMatch != nil && *options.IfMatch != azcore.ETagAny && *options.IfMatch != row.etag {
		return aztables.UpdateEntityResponse{}, &azcore.ResponseError{StatusCode: 412, ErrorCode: "UpdateConditionNotSatisfied"}
	}
	f.rows[id] = fakeRow{data: slices.Clone(entity), etag: f.nextETag()}
	return aztables.UpdateEntityResponse{}, nil
}

func (f *fakeTable) UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error) {
	k, err := keysOf(entity)
	if err != nil {
		return aztables.UpsertEntityResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[rowID(k.PartitionKey, k.RowKey)] = fakeRow{data: slices.Clone(entity), etag: f.nextETag()}
	return aztables.UpsertEntityResponse{}, nil
}

func (f *fakeTable) DeleteEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error) {
	if f.beforeDelete != nil {
		hook := f.beforeDelete
		f.beforeDelete = nil
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := rowID(partitionKey, rowKey)
	row, ok := f.rows[id]
	if !ok {
		return aztables.DeleteEntityResponse{}, &azcore.ResponseError{StatusCode: 404, ErrorCode: "ResourceNotFound"}
	}
	if options != nil && options.IfMatch != nil && *options.IfMatch != azcore.ETagAny && *options.IfMatch != row.etag {
		return aztables.DeleteEntityResponse{}, &azcore.ResponseError{StatusCode: 412, ErrorCode: "UpdateConditionNotSatisfied"}
	}
	delete(f.rows, id)
	return aztables.DeleteEntityResponse{}, nil
}

// NewListEntitiesPager understands only the "PartitionKey eq '...'" filter
// built by partitionFilter and ignores Select.
func (f *fakeTable) NewListEntitiesPager(options *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse] {
	f.mu.Lock()
	var matched [][]byte
	ids := make([]string, 0, len(f.rows))
	for id := range f.rows {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		row := f.rows[id]
		if options != nil && options.Filter != nil {
			pk, _, _ := strings.Cut(id, "\x00")
			if *options.Filter != partitionFilter(pk) {
				continue
			}
		}
		matched = append(matched, slices.Clone(row.data))
	}
	pageSize := f.pageSize
	f.mu.Unlock()

	offset := 0
	return runtime.NewPager(runtime.PagingHandler[aztables.ListEntitiesResponse]{
		More: func(aztables.ListEntitiesResponse) bool {
			return offset < len(matched)
		},
		Fetcher: func(ctx context.Context, _ *aztables.ListEntitiesResponse) (aztables.ListEntitiesResponse, error) {
			end := min(offset+pageSize, len(matched))
			page := matched[offset:end]
			offset = end
			return aztables.ListEntitiesResponse{Entities: page}, nil
		},
	})
}

func newTestStorage() (*Storage, *fakeTable, *fakeTable, *fakeTable) {
	projects, accounts, memberships := newFakeTable(), newFakeTable(), newFakeTable()
	var tick int64
	s := &Storage{
		projectTable:    projects,
		accountTable:    accounts,
		membershipTable: memberships,
		now: func() time.Time {
			tick++
			return time.Unix(0, tick*1000)
		},
	}
	return s, projects, accounts, memberships
}
