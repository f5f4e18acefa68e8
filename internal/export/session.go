package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Asset is one file destined for the archive.
type Asset struct {
	URL       string `json:"url" yaml:"url"`
	Filename  string `json:"filename" yaml:"filename"`
	Folder    string `json:"folder,omitempty" yaml:"folder,omitempty"`
	Extension string `json:"extension,omitempty" yaml:"extension,omitempty"`
}

// HistoryItem is a previously generated output. In session files it is
// either a bare URL string or an object with a url field.
type HistoryItem struct {
	URL string `json:"url" yaml:"url"`
}

func (h *HistoryItem) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		h.URL = s
		return nil
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("history item: want string or {url}: %w", err)
	}
	h.URL = obj.URL
	return nil
}

func (h *HistoryItem) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		h.URL = n.Value
		return nil
	}
	var obj struct {
		URL string `yaml:"url"`
	}
	if err := n.Decode(&obj); err != nil {
		return fmt.Errorf("history item: want string or {url}: %w", err)
	}
	h.URL = obj.URL
	return nil
}

// VideoStatusDone marks a finished video generation task.
const VideoStatusDone = "done"

// VideoTask is a video generation job.
type VideoTask struct {
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	Status    string `json:"status" yaml:"status"`
	ResultURL string `json:"resultUrl,omitempty" yaml:"resultUrl,omitempty"`
}

// Done reports whether the task finished with a downloadable result.
func (v VideoTask) Done() bool { return v.Status == VideoStatusDone && v.ResultURL != "" }

// VideoTasks keeps tasks in insertion order. Session files may give them
// as a list or as an object keyed by task id; key order is preserved.
type VideoTasks []VideoTask

func (vt *VideoTasks) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*vt = nil
		return nil
	}
	if b[0] == '[' {
		var list []VideoTask
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*vt = list
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	if _, err := dec.Token(); err != nil { // {
		return err
	}
	var out VideoTasks
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		var task VideoTask
		if err := dec.Decode(&task); err != nil {
			return fmt.Errorf("video task %v: %w", tok, err)
		}
		if task.ID == "" {
			task.ID, _ = tok.(string)
		}
		out = append(out, task)
	}
	*vt = out
	return nil
}

func (vt *VideoTasks) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		var list []VideoTask
		if err := n.Decode(&list); err != nil {
			return err
		}
		*vt = list
	case yaml.MappingNode:
		var out VideoTasks
		for i := 0; i+1 < len(n.Content); i += 2 {
			var task VideoTask
			if err := n.Content[i+1].Decode(&task); err != nil {
				return fmt.Errorf("video task %s: %w", n.Content[i].Value, err)
			}
			if task.ID == "" {
				task.ID = n.Content[i].Value
			}
			out = append(out, task)
		}
		*vt = out
	default:
		return fmt.Errorf("video tasks: want list or map, line %d", n.Line)
	}
	return nil
}

// Session is everything one export packages.
type Session struct {
	InputImages        []Asset       `json:"inputImages" yaml:"inputImages"`
	HistoricalImages   []HistoryItem `json:"historicalImages" yaml:"historicalImages"`
	VideoTasks         VideoTasks    `json:"videoTasks" yaml:"videoTasks"`
	ZipFilename        string        `json:"zipFilename" yaml:"zipFilename"`
	BaseOutputFilename string        `json:"baseOutputFilename" yaml:"baseOutputFilename"`
}

// Default names used when a session leaves them empty.
const (
	DefaultZipFilename = "apix-export.zip"
	DefaultBaseName    = "output"
	OutputFolder       = "output"
	InputFolder        = "input"
	VideoExtension     = "mp4"
)

// LoadSession reads a session file. Files ending in .json are decoded as
// JSON, everything else as YAML.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Session
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &s)
	} else {
		err = yaml.Unmarshal(data, &s)
	}
	if err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	return &s, nil
}

// BuildAssets flattens a session into the ordered archive asset list: input
// images as given, then history as <base>-<n> in the output folder, then
// finished videos as <base>-video-<n>.mp4. Video ordinals count every task,
// finished or not, so names stay stable while tasks complete.
func BuildAssets(s Session) []Asset {
	base := s.BaseOutputFilename
	if base == "" {
		base = DefaultBaseName
	}

	assets := make([]Asset, 0, len(s.InputImages)+len(s.HistoricalImages)+len(s.VideoTasks))
	assets = append(assets, s.InputImages...)
	for i, h := range s.HistoricalImages {
		assets = append(assets, Asset{
			URL:      h.URL,
			Filename: fmt.Sprintf("%s-%d", base, i+1),
			Folder:   OutputFolder,
		})
	}
	for i, v := range s.VideoTasks {
		if !v.Done() {
			continue
		}
		assets = append(assets, Asset{
			URL:       v.ResultURL,
			Filename:  fmt.Sprintf("%s-video-%d", base, i+1),
			Folder:    OutputFolder,
			Extension: VideoExtension,
		})
	}
	return assets
}
