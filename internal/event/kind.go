// Package event defines the events the core consumes and the narrow
// capabilities through which it talks back to the chat platform.
package event

// Kind tags an event. Kinds form a small hierarchy declared in the table
// below; a waiter registered for a broad kind also sees narrower ones.
type Kind uint8

const (
	KindAny Kind = iota
	KindSession
	KindReady
	KindShutdown
	KindMessage
	KindReaction
	KindReactionAdd
	KindReactionRemove
	KindInteraction
	KindSlashCommand
	KindAutocomplete
	KindComponent
	KindButtonClick
)

var kindNames = [...]string{
	KindAny:            "any",
	KindSession:        "session",
	KindReady:          "ready",
	KindShutdown:       "shutdown",
	KindMessage:        "message",
	KindReaction:       "reaction",
	KindReactionAdd:    "reaction_add",
	KindReactionRemove: "reaction_remove",
	KindInteraction:    "interaction",
	KindSlashCommand:   "slash_command",
	KindAutocomplete:   "autocomplete",
	KindComponent:      "component",
	KindButtonClick:    "button_click",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// isA lists, for each kind, the kind itself followed by every broader kind it
// satisfies, narrowest first.
var isA = map[Kind][]Kind{
	KindAny:            {KindAny},
	KindSession:        {KindSession, KindAny},
	KindReady:          {KindReady, KindSession, KindAny},
	KindShutdown:       {KindShutdown, KindSession, KindAny},
	KindMessage:        {KindMessage, KindAny},
	KindReaction:       {KindReaction, KindAny},
	KindReactionAdd:    {KindReactionAdd, KindReaction, KindAny},
	KindReactionRemove: {KindReactionRemove, KindReaction, KindAny},
	KindInteraction:    {KindInteraction, KindAny},
	KindSlashCommand:   {KindSlashCommand, KindInteraction, KindAny},
	KindAutocomplete:   {KindAutocomplete, KindInteraction, KindAny},
	KindComponent:      {KindComponent, KindInteraction, KindAny},
	KindButtonClick:    {KindButtonClick, KindComponent, KindInteraction, KindAny},
}

// Lineage returns k and every kind it is-a. The slice must not be modified.
func (k Kind) Lineage() []Kind {
	if l, ok := isA[k]; ok {
		return l
	}
	return []Kind{k, KindAny}
}

// Is reports whether k satisfies other.
func (k Kind) Is(other Kind) bool {
	for _, x := range k.Lineage() {
		if x == other {
			return true
		}
	}
	return false
}
