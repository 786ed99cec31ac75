package archive

import (
	"bytes"
	"encoding/json"
)

// UnmarshalJSON accepts a body given either as a single object or as a list.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   string          `json:"id"`
		Body json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.ID = raw.ID
	a.Bodies = nil

	body := bytes.TrimSpace(raw.Body)
	switch {
	case len(body) == 0, bytes.Equal(body, []byte("null")):
		return nil
	case body[0] == '[':
		var list []AnnotationBody
		if err := json.Unmarshal(body, &list); err != nil {
			return err
		}
		a.Bodies = list
	case body[0] == '{':
		var single AnnotationBody
		if err := json.Unmarshal(body, &single); err != nil {
			return err
		}
		a.Bodies = []AnnotationBody{single}
	}
	return nil
}
