package model

// ClipType identifies what a clipboard payload holds and therefore where it may be pasted.
type ClipType string

const (
	ClipContexts ClipType = "contexts"
	ClipActions  ClipType = "actions"
	ClipPipes    ClipType = "pipes"
)

// Clip is the clipboard envelope exchanged by copy, cut and paste.
type Clip struct {
	Type ClipType `json:"type"`
	Data []Spec   `json:"data"`
}

// ClipTypeFor returns the clipboard type for items of the given list.
func ClipTypeFor(key ListKey) ClipType {
	switch key.ItemKind() {
	case KindContext:
		return ClipContexts
	case KindPipe:
		return ClipPipes
	default:
		return ClipActions
	}
}

// ItemKind returns the kind of entity carried by the clip, or "" when unknown.
func (t ClipType) ItemKind() EntityKind {
	switch t {
	case ClipContexts:
		return KindContext
	case ClipActions:
		return KindAction
	case ClipPipes:
		return KindPipe
	default:
		return ""
	}
}
