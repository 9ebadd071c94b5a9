package rest

import (
	"github.com/collabodraw/live/data/model"
	"github.com/seventv/common/errors"
)

type Param struct {
	v interface{}
}

func (c *Ctx) UserValue(key Key) *Param {
	return &Param{c.RequestCtx.UserValue(string(key))}
}

// String returns a string value of the param
func (p *Param) String() (string, bool) {
	if p.v == nil {
		return "", false
	}

	s, ok := p.v.(string)

	return s, ok
}

// BoardID parses the param into a board id, accepting the "board-" prefix
func (p *Param) BoardID() (model.BoardID, APIError) {
	s, ok := p.String()
	if !ok || s == "" {
		return 0, errors.ErrEmptyField()
	}

	id, err := model.ParseBoardID(s)
	if err != nil {
		return 0, errors.ErrInvalidRequest().SetDetail("Bad Board ID")
	}

	return id, nil
}
