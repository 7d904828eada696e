package calendar

import (
	"context"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/clinicbook/clinic-booking/internal/interval"
)

// GoogleGateway talks to Google Calendar v3 with a service-account
// keyfile. Service accounts cannot send invitations, so sendUpdates is
// always "none" and patient details live in the event description.
type GoogleGateway struct {
	svc               *gcal.Service
	defaultCalendarID string
	loc               *time.Location
	timeout           time.Duration
}

type GoogleConfig struct {
	KeyfilePath       string
	DefaultCalendarID string
	Location          *time.Location
	Timeout           time.Duration
}

func NewGoogleGateway(ctx context.Context, cfg GoogleConfig) (*GoogleGateway, error) {
	if cfg.KeyfilePath == "" {
		return nil, fmt.Errorf("google calendar keyfile path is required")
	}
	if cfg.DefaultCalendarID == "" {
		return nil, fmt.Errorf("google calendar default calendar id is required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	svc, err := gcal.NewService(ctx,
		option.WithCredentialsFile(cfg.KeyfilePath),
		option.WithScopes(gcal.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	return &GoogleGateway{
		svc:               svc,
		defaultCalendarID: cfg.DefaultCalendarID,
		loc:               cfg.Location,
		timeout:           cfg.Timeout,
	}, nil
}

func (g *GoogleGateway) calendarID(id string) string {
	if id == "" {
		return g.defaultCalendarID
	}
	return id
}

func (g *GoogleGateway) ListBusy(ctx context.Context, calendarID string, from, to time.Time) ([]interval.Interval, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	// events.list rather than freebusy so all-day events are visible too.
	resp, err := g.svc.Events.List(g.calendarID(calendarID)).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w: %s", ErrUnavailable, err)
	}

	return eventsToBusyBlocks(resp.Items, g.loc)
}

// eventsToBusyBlocks converts calendar events into busy intervals.
// Cancelled events are skipped; all-day events (date-only start/end)
// expand to full-day blocks in the clinic timezone.
func eventsToBusyBlocks(items []*gcal.Event, loc *time.Location) ([]interval.Interval, error) {
	var blocks []interval.Interval
	for _, ev := range items {
		if ev == nil || ev.Status == "cancelled" {
			continue
		}
		if ev.Start == nil || ev.End == nil {
			continue
		}

		if ev.Start.Date != "" {
			start, err := time.ParseInLocation("2006-01-02", ev.Start.Date, loc)
			if err != nil {
				return nil, fmt.Errorf("parse all-day start %q: %w", ev.Start.Date, err)
			}
			end, err := time.ParseInLocation("2006-01-02", ev.End.Date, loc)
			if err != nil {
				return nil, fmt.Errorf("parse all-day end %q: %w", ev.End.Date, err)
			}
			blocks = append(blocks, interval.Interval{Start: start, End: end})
			continue
		}

		if ev.Start.DateTime == "" || ev.End.DateTime == "" {
			continue
		}
		start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
		if err != nil {
			return nil, fmt.Errorf("parse event start %q: %w", ev.Start.DateTime, err)
		}
		end, err := time.Parse(time.RFC3339, ev.End.DateTime)
		if err != nil {
			return nil, fmt.Errorf("parse event end %q: %w", ev.End.DateTime, err)
		}
		blocks = append(blocks, interval.Interval{Start: start, End: end})
	}
	return blocks, nil
}

func (g *GoogleGateway) InsertEvent(ctx context.Context, calendarID string, ev Event) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	created, err := g.svc.Events.Insert(g.calendarID(calendarID), g.toGoogleEvent(ev)).
		SendUpdates("none").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w: %s", ErrUnavailable, err)
	}
	return created.Id, nil
}

func (g *GoogleGateway) UpdateEvent(ctx context.Context, calendarID, eventID string, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, err := g.svc.Events.Patch(g.calendarID(calendarID), eventID, g.toGoogleEvent(ev)).
		SendUpdates("none").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("patch event: %w: %s", ErrUnavailable, err)
	}
	return nil
}

func (g *GoogleGateway) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := g.svc.Events.Delete(g.calendarID(calendarID), eventID).
		SendUpdates("none").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("delete event: %w: %s", ErrUnavailable, err)
	}
	return nil
}

func (g *GoogleGateway) toGoogleEvent(ev Event) *gcal.Event {
	return &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start: &gcal.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: g.loc.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: g.loc.String(),
		},
	}
}
