package grpcserver_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"jobsync/internal/grpcserver"
	"jobsync/internal/model"
	"jobsync/internal/query"
	"jobsync/internal/store"
)

func dial(t *testing.T, mem *store.Memory) *grpcserver.Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	grpcserver.RegisterJobServiceServer(srv, grpcserver.NewServer(query.NewService(mem, nil)))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return grpcserver.NewClient(conn)
}

func seeded(t *testing.T, n int) *store.Memory {
	t.Helper()
	mem := store.NewMemory()
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		_, err := mem.InsertIfAbsent(context.Background(), &model.Posting{
			ID:          fmt.Sprintf("g-%d", i),
			Fingerprint: fmt.Sprintf("fp-%d", i),
			Title:       "Business Analyst",
			Company:     "Globex",
			Source:      model.SourceNaukri,
			IsRemote:    i == 0,
			PostedAt:    at,
			FetchedAt:   at,
		})
		require.NoError(t, err)
	}
	return mem
}

func TestListJobs(t *testing.T) {
	c := dial(t, seeded(t, 5))

	req, err := structpb.NewStruct(map[string]any{"isRemote": true, "limit": 2})
	require.NoError(t, err)
	res, err := c.ListJobs(context.Background(), req)
	require.NoError(t, err)

	jobs := res.GetFields()["jobs"].GetListValue().GetValues()
	require.Len(t, jobs, 1)
	assert.Equal(t, "g-0", jobs[0].GetStructValue().GetFields()["id"].GetStringValue())

	pg := res.GetFields()["pagination"].GetStructValue().GetFields()
	assert.EqualValues(t, 1, pg["total"].GetNumberValue())
	assert.EqualValues(t, 2, pg["limit"].GetNumberValue())
}

func TestListJobs_LenientFields(t *testing.T) {
	c := dial(t, seeded(t, 3))
	cases := []struct {
		fields      map[string]any
		total, page int
	}{
		{map[string]any{"source": "Monster"}, 0, 1},
		{map[string]any{"isRemote": "yes"}, 3, 1},
		{map[string]any{"colour": "blue"}, 3, 1},
		{map[string]any{"page": -2, "limit": 0}, 3, 1},
		{map[string]any{"page": "abc"}, 3, 1},
		{map[string]any{"page": "2", "limit": 2}, 3, 2},
	}
	for _, tc := range cases {
		req, err := structpb.NewStruct(tc.fields)
		require.NoError(t, err)
		res, err := c.ListJobs(context.Background(), req)
		if err != nil {
			t.Errorf("ListJobs(%v) error = %v", tc.fields, err)
			continue
		}
		pg := res.GetFields()["pagination"].GetStructValue().GetFields()
		assert.EqualValues(t, tc.total, pg["total"].GetNumberValue(), tc.fields)
		assert.EqualValues(t, tc.page, pg["page"].GetNumberValue(), tc.fields)
		assert.NotNil(t, res.GetFields()["jobs"].GetListValue(), tc.fields)
	}
}

func TestApplyAndStats(t *testing.T) {
	c := dial(t, seeded(t, 3))
	ctx := context.Background()

	require.NoError(t, c.Apply(ctx, "g-2"))
	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.GetFields()["applied_count"].GetNumberValue())

	require.NoError(t, c.Unapply(ctx, "g-2"))
	stats, err = c.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.GetFields()["applied_count"].GetNumberValue())
}

func TestErrorMapping(t *testing.T) {
	mem := seeded(t, 1)
	c := dial(t, mem)
	ctx := context.Background()

	assert.Equal(t, codes.NotFound, status.Code(c.Apply(ctx, "missing")))
	assert.Equal(t, codes.InvalidArgument, status.Code(c.Unapply(ctx, "")))

	h, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", h.GetFields()["status"].GetStringValue())

	require.NoError(t, mem.Close())
	_, err = c.Health(ctx)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
