package native

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/custodia-labs/coursesync/internal/adapters/driven/platform/ratelimit"
	"github.com/custodia-labs/coursesync/internal/core/domain"
)

const localLayout = "2006-01-02T15:04:05"

func (p *Platform) createEvent(ctx context.Context, call domain.ToolCall, args domain.Value) (domain.Value, error) {
	startText := argText(args, "start_datetime", "start")
	if startText == "" {
		return domain.Null(), missingArg(call, "start_datetime")
	}
	tz := argText(args, "timezone")
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return domain.Null(), wrapError(call, fmt.Errorf("%w: timezone %q: %v", domain.ErrInvalidInput, tz, err))
	}
	start, err := time.ParseInLocation(localLayout, startText, loc)
	if err != nil {
		return domain.Null(), wrapError(call, fmt.Errorf("%w: start_datetime %q: %v", domain.ErrInvalidInput, startText, err))
	}

	duration := time.Duration(argNumber(args, "event_duration_hour"))*time.Hour +
		time.Duration(argNumber(args, "event_duration_minutes"))*time.Minute
	if duration <= 0 {
		duration = time.Hour
	}
	end := start.Add(duration)

	calendarID := argText(args, "calendar_id")
	if calendarID == "" {
		calendarID = "primary"
	}

	ts, err := p.tokens.For(ctx, call.Integration, call.UserID)
	if err != nil {
		return domain.Null(), err
	}
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, p.googleOpts...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return domain.Null(), fmt.Errorf("create calendar service: %w", err)
	}
	if err := p.wait(ctx, ratelimit.ServiceCalendar); err != nil {
		return domain.Null(), err
	}

	event := &calendar.Event{
		Summary:     argText(args, "summary", "title"),
		Description: argText(args, "description"),
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: tz},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: tz},
	}
	created, err := svc.Events.Insert(calendarID, event).Context(ctx).Do()
	p.observe(ratelimit.ServiceCalendar, err)
	if err != nil {
		return domain.Null(), wrapError(call, err)
	}

	return domain.FromAny(map[string]any{
		"id":       created.Id,
		"htmlLink": created.HtmlLink,
		"status":   created.Status,
	}), nil
}
