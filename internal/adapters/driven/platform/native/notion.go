package native

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"

	"github.com/custodia-labs/coursesync/internal/adapters/driven/platform/ratelimit"
	"github.com/custodia-labs/coursesync/internal/core/domain"
)

// notionTextLimit is the longest rich text content Notion accepts.
const notionTextLimit = 2000

func (p *Platform) insertRow(ctx context.Context, call domain.ToolCall, args domain.Value) (domain.Value, error) {
	databaseID := argText(args, "database_id")
	if databaseID == "" {
		return domain.Null(), missingArg(call, "database_id")
	}
	props, ok := args.Get("properties")
	if !ok {
		return domain.Null(), missingArg(call, "properties")
	}
	properties, err := notionProperties(props)
	if err != nil {
		return domain.Null(), wrapError(call, err)
	}

	token, err := p.tokens.Token(ctx, call.Integration, call.UserID)
	if err != nil {
		return domain.Null(), err
	}
	var opts []notionapi.ClientOption
	if p.notionClient != nil {
		opts = append(opts, notionapi.WithHTTPClient(p.notionClient))
	}
	client := notionapi.NewClient(notionapi.Token(token), opts...)

	if err := p.wait(ctx, ratelimit.ServiceNotion); err != nil {
		return domain.Null(), err
	}
	page, err := client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	p.observe(ratelimit.ServiceNotion, err)
	if err != nil {
		return domain.Null(), wrapError(call, err)
	}

	return domain.FromAny(map[string]any{
		"id":  string(page.ID),
		"url": page.URL,
	}), nil
}

// notionProperties converts [{name, type, value}] entries into page properties.
func notionProperties(list domain.Value) (notionapi.Properties, error) {
	if list.Kind() != domain.KindList {
		return nil, fmt.Errorf("%w: properties must be a list", domain.ErrInvalidInput)
	}

	props := make(notionapi.Properties, list.Len())
	for i, item := range list.Items() {
		name := argText(item, "name")
		if name == "" {
			return nil, fmt.Errorf("%w: property %d has no name", domain.ErrInvalidInput, i)
		}
		value, _ := item.Get("value")

		switch strings.ToLower(argText(item, "type")) {
		case "title":
			props[name] = notionapi.TitleProperty{Title: richText(value.Text())}
		case "rich_text", "text", "":
			props[name] = notionapi.RichTextProperty{RichText: richText(value.Text())}
		case "number":
			n, _ := value.AsNumber()
			props[name] = notionapi.NumberProperty{Number: n}
		case "checkbox":
			b, _ := value.AsBool()
			props[name] = notionapi.CheckboxProperty{Checkbox: b}
		case "select":
			props[name] = notionapi.SelectProperty{Select: notionapi.Option{Name: value.Text()}}
		case "url":
			props[name] = notionapi.URLProperty{URL: value.Text()}
		default:
			return nil, fmt.Errorf("%w: property %s has unsupported type %q", domain.ErrUnsupportedType, name, argText(item, "type"))
		}
	}
	return props, nil
}

// richText splits s into Notion-sized text runs.
func richText(s string) []notionapi.RichText {
	runes := []rune(s)
	if len(runes) == 0 {
		return []notionapi.RichText{{Text: &notionapi.Text{Content: ""}}}
	}
	var out []notionapi.RichText
	for len(runes) > 0 {
		n := min(len(runes), notionTextLimit)
		out = append(out, notionapi.RichText{Text: &notionapi.Text{Content: string(runes[:n])}})
		runes = runes[n:]
	}
	return out
}
