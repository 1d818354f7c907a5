package replicator_test

import (
	"context"
	"testing"

	"synnergy-registrar/internal/chainadapter"
	"synnergy-registrar/internal/replicator"
	"synnergy-registrar/internal/storage"
)

type fakeAtlas struct {
	pushed map[string][]byte
}

func newFakeAtlas() *fakeAtlas { return &fakeAtlas{pushed: make(map[string][]byte)} }

func (f *fakeAtlas) GetPeers(host string) ([]string, error) { return []string{host}, nil }

func (f *fakeAtlas) PushZonefile(_ context.Context, fqu string, zonefile []byte) (int, error) {
	f.pushed[fqu] = zonefile
	return 1, nil
}

const sampleZonefile = "$ORIGIN alice.id.\n$TTL 3600\n@ IN SOA ns1.example.com. admin.example.com. 1 7200 3600 1209600 3600\n@ IN NS ns1.example.com.\n"

func TestReplicateZonefilePushesWhenCurrent(t *testing.T) {
	atlasNode := newFakeAtlas()
	chain := chainadapter.NewMockClient()
	hash := replicator.ZonefileHash([]byte(sampleZonefile))
	chain.CurrentHash["alice.id"] = hash
	router := storage.NewRouter()
	repl, err := replicator.New(atlasNode, chain, router, nil)
	if err != nil {
		t.Fatalf("new replicator: %v", err)
	}

	pushed, err := repl.ReplicateZonefile(context.Background(), "alice.id", []byte(sampleZonefile))
	if err != nil {
		t.Fatalf("replicate: %v", err)
	}
	if !pushed {
		t.Fatalf("expected push once the chain confirms the hash")
	}
	if string(atlasNode.pushed["alice.id"]) != sampleZonefile {
		t.Fatalf("unexpected pushed content")
	}
}

func TestReplicateZonefileWaitsWhenNotYetConfirmed(t *testing.T) {
	atlasNode := newFakeAtlas()
	chain := chainadapter.NewMockClient()
	router := storage.NewRouter()
	repl, err := replicator.New(atlasNode, chain, router, nil)
	if err != nil {
		t.Fatalf("new replicator: %v", err)
	}

	pushed, err := repl.ReplicateZonefile(context.Background(), "alice.id", []byte(sampleZonefile))
	if err != nil {
		t.Fatalf("replicate: %v", err)
	}
	if pushed {
		t.Fatalf("expected no push before the chain confirms the hash")
	}
	if len(atlasNode.pushed) != 0 {
		t.Fatalf("expected atlas to not be contacted")
	}
}

func TestReplicateZonefileDedupsRepeatedCalls(t *testing.T) {
	atlasNode := newFakeAtlas()
	chain := chainadapter.NewMockClient()
	chain.CurrentHash["alice.id"] = replicator.ZonefileHash([]byte(sampleZonefile))
	router := storage.NewRouter()
	repl, _ := replicator.New(atlasNode, chain, router, nil)

	pushed, err := repl.ReplicateZonefile(context.Background(), "alice.id", []byte(sampleZonefile))
	if err != nil {
		t.Fatalf("first replicate: %v", err)
	}
	if !pushed {
		t.Fatalf("expected first call to push")
	}
	pushed, err = repl.ReplicateZonefile(context.Background(), "alice.id", []byte(sampleZonefile))
	if err != nil {
		t.Fatalf("second replicate: %v", err)
	}
	if pushed {
		t.Fatalf("expected second call to be deduped")
	}
}

func TestReplicateTokenFileSkipsUnparseableZonefile(t *testing.T) {
	atlasNode := newFakeAtlas()
	chain := chainadapter.NewMockClient()
	diskDriver, err := storage.NewDiskDriver("disk", t.TempDir())
	if err != nil {
		t.Fatalf("disk driver: %v", err)
	}
	router := storage.NewRouter(diskDriver)
	repl, _ := replicator.New(atlasNode, chain, router, []string{"disk"})

	stored, err := repl.ReplicateTokenFile(context.Background(), "alice.id", "somehash", []byte("not a zone file"), []byte("token-bytes"))
	if err != nil {
		t.Fatalf("replicate token file: %v", err)
	}
	if stored {
		t.Fatalf("expected token file to be skipped for an unparseable zone file")
	}
}

func TestReplicateTokenFileStoresWithValidZonefile(t *testing.T) {
	atlasNode := newFakeAtlas()
	chain := chainadapter.NewMockClient()
	diskDriver, err := storage.NewDiskDriver("disk", t.TempDir())
	if err != nil {
		t.Fatalf("disk driver: %v", err)
	}
	router := storage.NewRouter(diskDriver)
	repl, _ := replicator.New(atlasNode, chain, router, []string{"disk"})

	stored, err := repl.ReplicateTokenFile(context.Background(), "alice.id", "somehash", []byte(sampleZonefile), []byte("token-bytes"))
	if err != nil {
		t.Fatalf("replicate token file: %v", err)
	}
	if !stored {
		t.Fatalf("expected token file to be stored")
	}
}

func TestIsDeletion(t *testing.T) {
	if !replicator.IsDeletion([]byte("   \n")) {
		t.Fatalf("expected whitespace-only zonefile to be a deletion")
	}
	if replicator.IsDeletion([]byte(sampleZonefile)) {
		t.Fatalf("expected real zonefile to not be a deletion")
	}
}
