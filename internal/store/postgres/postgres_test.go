package postgres_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/goto/salt/log"
	"github.com/goto/sift/core/engine"
	"github.com/goto/sift/core/resource"
	"github.com/goto/sift/internal/store/postgres"
	"github.com/goto/sift/internal/testutils"
	_ "github.com/jackc/pgx/v4/stdlib"
)

func newTestClient(t *testing.T, logger log.Logger) (*postgres.Client, error) {
	t.Helper()

	port, err := testutils.RunTestPG(t, logger)
	if err != nil {
		return nil, err
	}

	pgClient, err := postgres.NewClient(context.Background(), postgres.Config{
		Host:     testutils.PGHost,
		Port:     port,
		Name:     testutils.PGName,
		User:     testutils.PGUsername,
		Password: testutils.PGPassword,
		SSLMode:  "disable",
	})
	if err != nil {
		return nil, err
	}

	if err := testutils.RunMigrationsWithClient(t, pgClient); err != nil {
		return nil, err
	}

	t.Cleanup(func() {
		if err := pgClient.Close(); err != nil {
			t.Fatal(err)
		}
	})

	return pgClient, nil
}

// helper functions
func createEngine(ctx context.Context, client *postgres.Client, name string, types ...string) (engine.SearchEngine, error) {
	repo, err := postgres.NewEngineRepository(client)
	if err != nil {
		return engine.SearchEngine{}, err
	}
	e := engine.SearchEngine{
		Name:     name,
		Adapter:  engine.AdapterInternal,
		Settings: engine.EngineSettings{ResourceTypes: types},
	}
	if e.ID, err = repo.Upsert(ctx, &e); err != nil {
		return engine.SearchEngine{}, err
	}
	return e, nil
}

func createResource(ctx context.Context, repo *postgres.ResourceRepository, typ, title string, public bool, values ...resource.Value) (resource.Resource, error) {
	res := resource.Resource{Type: typ, Title: title, IsPublic: public, Values: values}
	if title != "" {
		res.Values = append([]resource.Value{literal("dcterms:title", title)}, values...)
	}
	if _, err := repo.Create(ctx, &res); err != nil {
		return resource.Resource{}, err
	}
	return res, nil
}

func literal(term, value string) resource.Value {
	return resource.Value{Term: term, Type: resource.ValueLiteral, Value: value, IsPublic: true}
}

func resourceIDs(resources ...resource.Resource) []int64 {
	ids := make([]int64, 0, len(resources))
	for _, res := range resources {
		ids = append(ids, res.ID)
	}
	return ids
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
