// Package api defines the wire types exchanged at the volume boundary:
// LIST/PUT/PATCH request and response bodies, and the ServerEvent
// broadcast to subscribers.
package api

import (
	"encoding/json"
	"fmt"
)

// TextOp is either an Insert ({at,text}) or a Delete ({at,length}) in the
// wire representation of a TextFilePatch.
type TextOp struct {
	At     int     `json:"at"`
	Text   *string `json:"text,omitempty"`
	Length *int    `json:"length,omitempty"`
}

// IsInsert reports whether this op carries text (an insert) as opposed to
// a length (a delete). The two are mutually exclusive per §3.
func (o TextOp) IsInsert() bool { return o.Text != nil }

// PatchKind discriminates FilePatch values per the classification
// predicates in §6: JSON patch if "patches" is present; else text-set if
// "content" is present (including null); else text-patch if "timestamp"
// is present and "operations" is an array.
type PatchKind int

const (
	KindUnknown PatchKind = iota
	KindJSON
	KindTextSet
	KindTextPatch
)

// String renders the metrics-label form of a PatchKind: "json",
// "text_set", or "text_patch".
func (k PatchKind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindTextSet:
		return "text_set"
	case KindTextPatch:
		return "text_patch"
	default:
		return "unknown"
	}
}

// JSONPatchOp is a single RFC 6902 operation, passed through unparsed to
// the json-patch engine except for the "path" field discriminator above.
type JSONPatchOp = json.RawMessage

// FilePatch is one entry of a VolumePatchRequest's patches array. Exactly
// one of the Kind-specific fields is populated, per the wire
// classification predicates; Kind is set by UnmarshalJSON and must not be
// set directly by callers constructing a FilePatch in Go code (use the
// NewXxxPatch constructors).
type FilePatch struct {
	Kind PatchKind

	Path string

	// JSON patch
	JSONPatches []json.RawMessage

	// Text set; nil means "create empty" (wire content: null).
	Content *string

	// Text patch
	Timestamp  uint64
	Operations []TextOp
}

// NewJSONPatch builds a JSON-patch FilePatch.
func NewJSONPatch(path string, ops []json.RawMessage) FilePatch {
	return FilePatch{Kind: KindJSON, Path: path, JSONPatches: ops}
}

// NewTextSetPatch builds a whole-file-replace FilePatch. content == nil
// means "create empty".
func NewTextSetPatch(path string, content *string) FilePatch {
	return FilePatch{Kind: KindTextSet, Path: path, Content: content}
}

// NewTextPatch builds a CRDT text-patch FilePatch.
func NewTextPatch(path string, timestamp uint64, ops []TextOp) FilePatch {
	return FilePatch{Kind: KindTextPatch, Path: path, Timestamp: timestamp, Operations: ops}
}

type wireFilePatch struct {
	Path       string            `json:"path"`
	Patches    []json.RawMessage `json:"patches,omitempty"`
	Content    *string           `json:"content,omitempty"`
	Timestamp  *uint64           `json:"timestamp,omitempty"`
	Operations []TextOp          `json:"operations,omitempty"`
}

// UnmarshalJSON implements the classification predicates from §6: a
// patch is a JSON patch if "patches" is present; else a text set if
// "content" is present (including null); else a text patch if
// "timestamp" is present and "operations" is an array.
func (p *FilePatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var w wireFilePatch
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	_, hasContent := raw["content"]
	path := w.Path
	switch {
	case raw["patches"] != nil:
		var ops []json.RawMessage
		if err := json.Unmarshal(raw["patches"], &ops); err != nil {
			return fmt.Errorf("api: patches: %w", err)
		}
		*p = NewJSONPatch(path, ops)
	case hasContent:
		*p = NewTextSetPatch(path, w.Content)
	case raw["timestamp"] != nil && raw["operations"] != nil:
		if w.Timestamp == nil {
			return fmt.Errorf("api: text patch missing timestamp")
		}
		*p = NewTextPatch(path, *w.Timestamp, w.Operations)
	default:
		return fmt.Errorf("api: patch at %q matches no known shape (need patches, content, or timestamp+operations)", path)
	}
	return nil
}

// MarshalJSON round-trips a FilePatch back to its wire shape.
func (p FilePatch) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case KindJSON:
		return json.Marshal(struct {
			Path    string            `json:"path"`
			Patches []json.RawMessage `json:"patches"`
		}{p.Path, p.JSONPatches})
	case KindTextSet:
		return json.Marshal(struct {
			Path    string  `json:"path"`
			Content *string `json:"content"`
		}{p.Path, p.Content})
	case KindTextPatch:
		return json.Marshal(struct {
			Path       string   `json:"path"`
			Timestamp  uint64   `json:"timestamp"`
			Operations []TextOp `json:"operations"`
		}{p.Path, p.Timestamp, p.Operations})
	default:
		return nil, fmt.Errorf("api: cannot marshal FilePatch with unknown kind")
	}
}

// VolumePatchRequest is the PATCH request body.
type VolumePatchRequest struct {
	MessageID *string     `json:"messageId,omitempty"`
	Patches   []FilePatch `json:"patches"`
}

// FilePatchResult is one entry of a VolumePatchResponse's results, in
// input order (one per input patch, §3 I5). Kind is not part of the wire
// shape; it records which patch family produced the result so callers
// (metrics, logging) can report it without re-deriving it from Content.
type FilePatchResult struct {
	Kind     PatchKind `json:"-"`
	Path     string    `json:"path"`
	Accepted bool      `json:"accepted"`
	Content  *string   `json:"content,omitempty"`
	Deleted  bool      `json:"deleted,omitempty"`
}

// VolumePatchResponse is the PATCH response body.
type VolumePatchResponse struct {
	Timestamp uint64            `json:"timestamp"`
	Results   []FilePatchResult `json:"results"`
}

// ServerEvent is broadcast to subscribers in commit order after a fully
// accepted batch.
type ServerEvent struct {
	MessageID *string `json:"messageId,omitempty"`
	Path      string  `json:"path"`
	Timestamp uint64  `json:"timestamp"`
	Deleted   bool    `json:"deleted,omitempty"`
}

// FileEntry is one entry of a VolumeListResponse's fs map.
type FileEntry struct {
	Content *string `json:"content"`
}

// VolumeListResponse is the LIST response body.
type VolumeListResponse struct {
	Timestamp uint64               `json:"timestamp"`
	VolumeID  string               `json:"volumeId"`
	FS        map[string]FileEntry `json:"fs"`
}

// PutRequest is the PUT request body: a full replacement of the volume's
// files.
type PutRequest map[string]FileEntry
