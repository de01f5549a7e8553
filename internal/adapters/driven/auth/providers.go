// Package auth links integrations without a hosted platform: either through
// a browser OAuth flow against the provider directly, or from tokens given
// in the environment.
package auth

import (
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/drive/v3"
)

// Provider names used as auth config references in OAuth mode.
const (
	ProviderGoogle = "google"
	ProviderNotion = "notion"
)

// Provider is an OAuth client registration plus provider-specific
// authorization URL parameters.
type Provider struct {
	Config     *oauth2.Config
	AuthParams []oauth2.AuthCodeOption
}

// GoogleProvider returns the Google provider with read-only Drive and
// event-writing Calendar scopes. Offline access is requested so the
// connection can be refreshed later.
func GoogleProvider(clientID, clientSecret string) Provider {
	return Provider{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
			Scopes: []string{drive.DriveReadonlyScope, calendar.CalendarEventsScope},
		},
		AuthParams: []oauth2.AuthCodeOption{
			oauth2.AccessTypeOffline,
			oauth2.SetAuthURLParam("prompt", "consent"),
		},
	}
}

// NotionProvider returns the Notion public integration provider.
func NotionProvider(clientID, clientSecret string) Provider {
	return Provider{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://api.notion.com/v1/oauth/authorize",
				TokenURL:  "https://api.notion.com/v1/oauth/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		AuthParams: []oauth2.AuthCodeOption{
			oauth2.SetAuthURLParam("owner", "user"),
		},
	}
}
