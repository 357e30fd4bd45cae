package templates

import "errors"

var (
	ErrTemplateNotFound = errors.New("templates: template not found")
	ErrInvalidTemplate  = errors.New("templates: invalid template")
	ErrRender           = errors.New("templates: render failed")
)
