package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const input = `id,uri,name,artist,tempo,key,mode
a,spotify:track:a,Alpha,One,128,9,0
b,spotify:track:b,Bravo,Two,,,
c,spotify:track:c,Charlie,Three,100.2,0,1
`

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracks.csv")
	if err := os.WriteFile(path, []byte(input), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunRequiresInput(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), nil, &out, &errOut); err == nil {
		t.Fatal("expected error without input")
	}
	if !strings.Contains(errOut.String(), "Usage") {
		t.Error("expected usage on stderr")
	}
}

func TestRunRejectsFormat(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), []string{"-input", writeInput(t), "-format", "xml"}, &out, &errOut); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestRunText(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), []string{"-input", writeInput(t)}, &out, &errOut); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	house := strings.Index(text, "House (100-119 BPM)  8B")
	techno := strings.Index(text, "Techno (120-139 BPM)  8A")
	if house < 0 || techno < 0 || house > techno {
		t.Errorf("unexpected group output:\n%s", text)
	}
	if !strings.Contains(text, "3 tracks, 2 organized into 2 groups, 1 excluded") {
		t.Errorf("missing summary:\n%s", text)
	}
}

func TestRunJSONAndOutput(t *testing.T) {
	in := writeInput(t)
	outPath := filepath.Join(t.TempDir(), "organized.csv")
	var out, errOut bytes.Buffer
	if err := run(context.Background(), []string{"-input", in, "-format", "json", "-output", outPath}, &out, &errOut); err != nil {
		t.Fatal(err)
	}
	var got struct {
		Groups []struct {
			BPM     int    `json:"bpm"`
			Camelot string `json:"camelot"`
		} `json:"groups"`
		Summary struct {
			Excluded int `json:"excluded"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Groups) != 2 || got.Groups[0].BPM != 100 || got.Summary.Excluded != 1 {
		t.Errorf("unexpected json %+v", got)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 3 || !strings.HasPrefix(lines[1], "c,") {
		t.Errorf("unexpected csv output %q", data)
	}
}

func TestRunSimulate(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), []string{"-input", writeInput(t), "-simulate"}, &out, &errOut); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "3 tracks, 3 organized") {
		t.Errorf("simulate should fill missing analysis:\n%s", out.String())
	}
}
