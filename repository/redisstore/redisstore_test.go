package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"groundchat/models"
)

// TestStoreIntegration runs against a disposable redis container. Skipped in
// -short mode.
func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}

	client, err := Conn(ctx, host, port.Port(), "", 0, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	s := New(client)

	now := time.Now().Truncate(time.Second)
	turns := []models.Turn{
		{Role: models.RoleUser, Content: "第一行\n第二行", Timestamp: now},
		{Role: models.RoleAssistant, Content: "回覆", Timestamp: now.Add(time.Second)},
		{Role: models.RoleUser, Content: "追問", Timestamp: now.Add(2 * time.Second)},
	}
	for _, turn := range turns {
		if err := s.AppendTurn(ctx, 7, turn); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.RecentTurns(ctx, 7, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d turns, want 2", len(got))
	}
	if got[0].Content != "回覆" || got[1].Content != "追問" {
		t.Errorf("recent turns = %+v, want the last two in order", got)
	}

	all, err := s.RecentTurns(ctx, 7, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Content != "第一行\n第二行" {
		t.Errorf("all turns = %+v, want newline-preserving round trip", all)
	}

	if _, err := s.MergeProfile(ctx, 7, models.Profile{PreferredLanguage: "zh-Hant"}); err != nil {
		t.Fatal(err)
	}
	merged, err := s.MergeProfile(ctx, 7, models.Profile{DefaultWeatherLocation: "台北"})
	if err != nil {
		t.Fatal(err)
	}
	if merged.PreferredLanguage != "zh-Hant" || merged.DefaultWeatherLocation != "台北" {
		t.Errorf("merged = %+v", merged)
	}

	if err := s.ClearProfile(ctx, 7); err != nil {
		t.Fatal(err)
	}
	p, err := s.GetProfile(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if p != (models.Profile{}) {
		t.Errorf("profile after clear = %+v, want empty", p)
	}
}
