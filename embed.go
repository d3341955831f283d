package wcx

import (
	"context"
	"fmt"
	"html"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/a-h/templ"
)

// TokenAttr is the attribute carrying the signed instance token.
const TokenAttr = "data-wcx-token"

// Embed returns a templ component rendering the custom element for tag with
// the given initial property values.
//
//	box, err := reg.Embed("user-box", map[string]any{"name": "Ada"})
//	...
//	@box
//
// Values must match the declared property types. Scalar values are also
// written as attributes so the element is meaningful before the session
// attaches. If the exporter declared a template, its content is rendered as
// the element's light DOM.
func (reg *Registry) Embed(tag string, props map[string]any) (templ.Component, error) {
	cfg, ok := reg.Configuration(tag)
	if !ok {
		return nil, fmt.Errorf("%w: <%s>", ErrNotFound, tag)
	}

	for name, v := range props {
		pd, ok := cfg.PropertyData(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q on <%s>", ErrUnknownProperty, name, tag)
		}
		if v != nil && !reflect.TypeOf(v).AssignableTo(pd.Type) {
			return nil, fmt.Errorf("%w: property %q expects %s, got %T", ErrTypeMismatch, name, pd.Type, v)
		}
	}

	token, err := sealToken(reg.encoder, cfg, props)
	if err != nil {
		return nil, fmt.Errorf("wcx: seal <%s>: %w", tag, err)
	}

	var light string
	if path := cfg.TemplatePath(); path != "" && reg.templates != nil {
		light, err = reg.templates.Template(path, tag, cfg.ComponentType().String())
		if err != nil {
			return nil, err
		}
	}

	return elementComponent(tag, token, props, light), nil
}

func elementComponent(tag, token string, props map[string]any, light string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		sb.WriteString("<")
		sb.WriteString(tag)
		sb.WriteString(` ` + TokenAttr + `="`)
		sb.WriteString(html.EscapeString(token))
		sb.WriteString(`"`)

		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			attr, ok := attributeValue(props[name])
			if !ok {
				continue
			}
			sb.WriteString(" ")
			sb.WriteString(name)
			sb.WriteString(`="`)
			sb.WriteString(html.EscapeString(attr))
			sb.WriteString(`"`)
		}
		sb.WriteString(">")
		sb.WriteString(light)
		sb.WriteString("</")
		sb.WriteString(tag)
		sb.WriteString(">")

		_, err := io.WriteString(w, sb.String())
		return err
	})
}

func attributeValue(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		if x {
			return "", true
		}
		return "", false
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(x), true
	default:
		return "", false
	}
}
