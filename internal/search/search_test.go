package search

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

func TestTokenizeLowercasesAndSplits(t *testing.T) {
	require.Equal(t, []string{"failed", "login", "for", "root"}, tokenize("Failed Login for root!!"))
}

func TestStemStripsCommonSuffixes(t *testing.T) {
	require.Equal(t, "connect", stem("connecting"))
	require.Equal(t, "fail", stem("failed"))
	require.Equal(t, "failur", stem("failures"))
	require.Equal(t, "pass", stem("pass"))
}

func TestAddSingleAndSearchByField(t *testing.T) {
	idx := New()
	ev := model.New(time.Now(), model.KindEvent)
	ev.Host.Name = "db-01"
	ev.Principal.User = "alice"
	ev.Action = "login"
	ev.Extensions = map[string]model.FieldValue{"message": model.Scalar("failed password for invalid user")}

	idx.AddSingle(DocFromEvent(ev))

	require.Equal(t, []string{ev.ID}, idx.Search(ParseQuery("host:db-01")))
	require.Equal(t, []string{ev.ID}, idx.Search(ParseQuery("user:alice")))
	require.Equal(t, []string{ev.ID}, idx.Search(ParseQuery("password")))
	require.Empty(t, idx.Search(ParseQuery("host:web-02")))
}

func TestSearchANDsMultipleClauses(t *testing.T) {
	idx := New()
	ev1 := model.New(time.Now(), model.KindEvent)
	ev1.Host.Name = "db-01"
	ev1.Principal.User = "alice"
	ev2 := model.New(time.Now(), model.KindEvent)
	ev2.Host.Name = "db-01"
	ev2.Principal.User = "bob"
	idx.AddBatch([]*Doc{DocFromEvent(ev1), DocFromEvent(ev2)})

	got := idx.Search(ParseQuery("host:db-01 user:alice"))
	require.Equal(t, []string{ev1.ID}, got)
}

func TestDeleteByIDRemovesFromPostings(t *testing.T) {
	idx := New()
	ev := model.New(time.Now(), model.KindEvent)
	ev.Host.Name = "db-01"
	idx.AddSingle(DocFromEvent(ev))
	require.Len(t, idx.Search(ParseQuery("host:db-01")), 1)

	idx.DeleteByID(ev.ID)
	require.Empty(t, idx.Search(ParseQuery("host:db-01")))
	require.Equal(t, 0, idx.Len())
}

func TestSuggestPrefixOverField(t *testing.T) {
	idx := New()
	for _, host := range []string{"db-01", "db-02", "webserver"} {
		ev := model.New(time.Now(), model.KindEvent)
		ev.Host.Name = host
		idx.AddSingle(DocFromEvent(ev))
	}
	// tokenize splits "db-01" into ["db","01"]; only "db" and "web..."
	// tokens exist as distinct postings, so a "db" prefix matches the
	// shared "db" token and a "web" prefix matches "webserver".
	require.Equal(t, []string{"db"}, idx.Suggest(FieldHost, "db", 10))
	require.Equal(t, []string{"webserver"}, idx.Suggest(FieldHost, "web", 10))
}

func TestReindexingSameIDReplacesOldPostings(t *testing.T) {
	idx := New()
	ev := model.New(time.Now(), model.KindEvent)
	ev.ID = "fixed-id"
	ev.Host.Name = "old-host"
	idx.AddSingle(DocFromEvent(ev))

	ev.Host.Name = "new-host"
	idx.AddSingle(DocFromEvent(ev))

	require.Empty(t, idx.Search(ParseQuery("host:old-host")))
	require.Equal(t, []string{"fixed-id"}, idx.Search(ParseQuery("host:new-host")))
}

func TestCommitAndRebuildRoundTrips(t *testing.T) {
	idx := New()
	ev := model.New(time.Now(), model.KindEvent)
	ev.Host.Name = "db-01"
	idx.AddSingle(DocFromEvent(ev))

	path := filepath.Join(t.TempDir(), "search.db")
	store, err := OpenStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Commit(idx))
	require.NoError(t, store.Close())

	rebuilt, store2, err := Rebuild(path)
	require.NoError(t, err)
	defer store2.Close()
	require.Equal(t, 1, rebuilt.Len())
	require.Equal(t, []string{ev.ID}, rebuilt.Search(ParseQuery("host:db-01")))
}
