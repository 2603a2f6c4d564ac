package model

// Role identifies who authored a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one utterance in a conversation. Turns are values and never change
// after they are appended to a transcript.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// UserTurn builds a turn authored by the client.
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

// ModelTurn builds a turn authored by the model.
func ModelTurn(text string) Turn {
	return Turn{Role: RoleModel, Text: text}
}

// Part is a single piece of a conversation turn.
type Part struct {
	Text string `json:"text" bson:"text"`
}

// Content is the wire and storage shape of a turn, composed of one or more parts.
type Content struct {
	Parts []Part `json:"parts" bson:"parts"`
	Role  string `json:"role" bson:"role"`
}

// ToContent converts a turn into its single-part content form.
func (t Turn) ToContent() Content {
	return Content{
		Role:  string(t.Role),
		Parts: []Part{{Text: t.Text}},
	}
}

// TurnFromContent collapses content parts into a turn; parts are joined in order.
func TurnFromContent(c Content) Turn {
	var text string
	for _, p := range c.Parts {
		text += p.Text
	}
	return Turn{Role: Role(c.Role), Text: text}
}

// ToContents converts an ordered turn list into content form.
func ToContents(turns []Turn) []Content {
	result := make([]Content, 0, len(turns))
	for _, t := range turns {
		result = append(result, t.ToContent())
	}
	return result
}

// TurnsFromContents is the inverse of ToContents.
func TurnsFromContents(contents []Content) []Turn {
	result := make([]Turn, 0, len(contents))
	for _, c := range contents {
		result = append(result, TurnFromContent(c))
	}
	return result
}
