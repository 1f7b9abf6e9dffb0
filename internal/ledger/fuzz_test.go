package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentfabric/govcore/internal/storage"
)

func FuzzVerify(f *testing.F) {
	// Seed with a valid 3-event chain
	validLog := filepath.Join(f.TempDir(), "valid.jsonl")
	st, err := storage.OpenFile(validLog, "")
	if err != nil {
		f.Fatal(err)
	}
	l, err := Open(st)
	if err != nil {
		f.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := l.Append(testEvent("e-fuzz")); err != nil {
			f.Fatal(err)
		}
	}
	st.Close()
	validData, _ := os.ReadFile(validLog)
	f.Add(validData)

	// Empty
	f.Add([]byte{})

	// Single garbage line
	f.Add([]byte(`{"not":"a valid event"}` + "\n"))

	// Totally invalid
	f.Add([]byte(`not json`))

	// Legacy line with null stable fields
	f.Add([]byte(`{"eventId":"0000000000000000","prevEventId":"GENESIS","action":"toggle","reason":null}` + "\n"))

	f.Fuzz(func(t *testing.T, data []byte) {
		path := filepath.Join(t.TempDir(), "fuzz.jsonl")
		os.WriteFile(path, data, 0600)

		st, err := storage.OpenFile(path, "")
		if err != nil {
			t.Fatal(err)
		}
		defer st.Close()

		l, err := Open(st)
		if err != nil {
			return
		}
		// Must not panic
		l.Verify("")
		l.Read(0, "")
	})
}

func FuzzEventUnmarshal(f *testing.F) {
	valid, _ := testEvent("e1").MarshalJSON()
	f.Add(valid)
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"eventId":123,"tsMs":"not a number"}`))
	f.Add([]byte(`{"action":null,"meta":{"nested":["x"]}}`))
	f.Add([]byte(`not json`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var ev Event
		if err := ev.UnmarshalJSON(data); err != nil {
			return
		}
		// Anything that parsed must re-hash without panic or error.
		if _, err := ComputeEventIDV0(&ev); err != nil {
			t.Fatalf("v0 hash of parsed event: %v", err)
		}
		if _, err := ComputeEventIDV1(Genesis, &ev); err != nil {
			t.Fatalf("v1 hash of parsed event: %v", err)
		}
	})
}
