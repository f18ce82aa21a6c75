package parsers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SushanthKS06/IsoLog/internal/model"
)

type fakeParser struct {
	id     string
	prefix byte
}

func (f fakeParser) ID() string { return f.id }
func (f fakeParser) CanParse(raw []byte) bool {
	return len(raw) > 0 && raw[0] == f.prefix
}
func (f fakeParser) Parse(raw []byte, hint SourceHint) (*model.Event, bool) {
	if !f.CanParse(raw) {
		return nil, false
	}
	e := model.New(time.Now(), model.KindEvent)
	e.ParserID = f.id
	return e, true
}

func TestRegistryDetectFirstMatchWins(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeParser{id: "b", prefix: 'x'}, 10)
	r.Register(fakeParser{id: "a", prefix: 'x'}, 1)

	p := r.Detect([]byte("xyz"))
	require.NotNil(t, p)
	require.Equal(t, "a", p.ID(), "lower priority wins ties")
}

func TestRegistryParseByID(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeParser{id: "json", prefix: '{'}, 1)

	ev, ok := r.Parse([]byte("{}"), "json", SourceHint{})
	require.True(t, ok)
	require.Equal(t, "json", ev.ParserID)

	_, ok = r.Parse([]byte("nope"), "missing", SourceHint{})
	require.False(t, ok)
}

func TestRegistryParseAutoDetect(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeParser{id: "json", prefix: '{'}, 1)

	_, ok := r.Parse([]byte("not json"), "", SourceHint{})
	require.False(t, ok)

	ev, ok := r.Parse([]byte("{}"), "", SourceHint{})
	require.True(t, ok)
	require.Equal(t, "json", ev.ParserID)
}

func TestRegistryReloadIsAtomic(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeParser{id: "a", prefix: 'a'}, 1)
	require.Equal(t, []string{"a"}, r.ParserIDs())

	r.Reload(map[Parser]int{fakeParser{id: "b", prefix: 'b'}: 1})
	require.Equal(t, []string{"b"}, r.ParserIDs())
}
