package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Clark-Hu/lopperater/internal/apperr"
	"github.com/Clark-Hu/lopperater/internal/config"
	"github.com/Clark-Hu/lopperater/internal/domain"
	"github.com/Clark-Hu/lopperater/internal/geo"
	"github.com/Clark-Hu/lopperater/internal/rating"
	"github.com/Clark-Hu/lopperater/internal/repository"
	"github.com/Clark-Hu/lopperater/internal/session"
)

const dateLayout = "2006-01-02T15:04"

func loginCommand(r *runtime) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "save a session token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "token", Required: true, EnvVars: []string{"LOPPERATER_TOKEN"}},
		},
		Action: r.withApp(func(c *cli.Context, app *application) error {
			token := strings.TrimSpace(c.String("token"))
			var user domain.User
			switch {
			case app.baas != nil:
				app.baas.SetSessionToken(token)
				u, err := app.baas.CurrentUser(c.Context)
				if err != nil {
					return err
				}
				user = u
			case app.cfg.SessionSecret != "":
				s, err := session.Verify(token, []byte(app.cfg.SessionSecret))
				if err != nil {
					return err
				}
				user = s.User()
			default:
				return apperr.NewValidation("SESSION_SECRET is required to log in with the postgres backend")
			}
			if _, err := app.sessions.Save(token); err != nil {
				return err
			}
			fmt.Fprintf(app.out, "Logged in as %s (%s)\n", displayName(user), user.ID)
			return nil
		}),
	}
}

func logoutCommand(r *runtime) *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "forget the saved session",
		Action: func(c *cli.Context) error {
			if err := session.NewFileStore(r.cfg.SessionFile).Clear(); err != nil {
				return err
			}
			fmt.Fprintln(r.out, "Logged out")
			return nil
		},
	}
}

func whoamiCommand(r *runtime) *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "show the logged in user",
		Action: func(c *cli.Context) error {
			s, err := session.NewFileStore(r.cfg.SessionFile).Load(time.Now())
			if err != nil {
				if errors.Is(err, session.ErrNoSession) {
					fmt.Fprintln(r.out, "Not logged in")
					return nil
				}
				return err
			}
			printUser(r.out, s)
			return nil
		},
	}
}

func marketsCommand(r *runtime) *cli.Command {
	return &cli.Command{
		Name:  "markets",
		Usage: "list markets, nearest first when a location is given",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "filter by name or city"},
			&cli.Float64Flag{Name: "lat", Usage: "your latitude"},
			&cli.Float64Flag{Name: "lon", Usage: "your longitude"},
		},
		Action: r.withApp(func(c *cli.Context, app *application) error {
			if _, err := app.state.LoadMarkets(c.Context); err != nil {
				return err
			}
			loc, err := locationFlags(c)
			if err != nil {
				return err
			}
			app.state.SetUserLocation(loc)
			printMarkets(app.out, app.state.VisibleMarkets(c.String("query")))
			return nil
		}),
	}
}

func marketCommand(r *runtime) *cli.Command {
	return &cli.Command{
		Name:  "market",
		Usage: "manage markets",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create a market",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "address"},
					&cli.StringFlag{Name: "city"},
					&cli.StringFlag{Name: "postal-code"},
					&cli.Float64Flag{Name: "lat"},
					&cli.Float64Flag{Name: "lon"},
					&cli.TimestampFlag{Name: "start", Layout: dateLayout, Timezone: time.Local, Usage: "opening time, " + dateLayout},
					&cli.TimestampFlag{Name: "end", Layout: dateLayout, Timezone: time.Local, Usage: "closing time, " + dateLayout},
					&cli.BoolFlag{Name: "active", Value: true},
				},
				Action: r.withApp(func(c *cli.Context, app *application) error {
					draft := domain.MarketDraft{
						Name:        strings.TrimSpace(c.String("name")),
						Description: optionalString(c, "description"),
						Location: domain.Location{
							Coordinates: domain.Coordinates{Latitude: c.Float64("lat"), Longitude: c.Float64("lon")},
							Address:     c.String("address"),
							City:        c.String("city"),
							PostalCode:  optionalString(c, "postal-code"),
						},
						IsActive: c.Bool("active"),
					}
					if t := c.Timestamp("start"); t != nil {
						draft.StartDate = t.UTC()
					}
					if t := c.Timestamp("end"); t != nil {
						draft.EndDate = t.UTC()
					}
					market, err := app.state.CreateMarket(c.Context, draft)
					if err != nil {
						return err
					}
					fmt.Fprintf(app.out, "Created market %s (%s)\n", market.Name, market.ID)
					return nil
				}),
			},
		},
	}
}

func stallsCommand(r *runtime) *cli.Command {
	return &cli.Command{
		Name:  "stalls",
		Usage: "list a market's stalls with their average ratings",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "market", Required: true, Usage: "market id"},
		},
		Action: r.withApp(func(c *cli.Context, app *application) error {
			stalls, err := app.state.LoadStalls(c.Context, c.String("market"))
			if err != nil {
				return err
			}
			printStalls(app.out, stalls)
			return nil
		}),
	}
}

func stallCommand(r *runtime) *cli.Command {
	return &cli.Command{
		Name:  "stall",
		Usage: "manage stalls",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "register a stall you run",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "market", Required: true},
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "phone", Usage: "MobilePay number"},
				},
				Action: r.withApp(func(c *cli.Context, app *application) error {
					stall, err := app.state.CreateStall(c.Context, domain.StallDraft{
						MarketID:    c.String("market"),
						Name:        c.String("name"),
						Description: optionalString(c, "description"),
						Phone:       optionalString(c, "phone"),
					})
					if err != nil {
						return err
					}
					fmt.Fprintf(app.out, "Created stall %s (%s)\n", stall.Name, stall.ID)
					return nil
				}),
			},
		},
	}
}

func rateCommand(r *runtime) *cli.Command {
	return &cli.Command{
		Name:      "rate",
		Usage:     "rate a stall by id, or by name and phone within a market",
		UsageText: "lopperater rate --stall ID --selection 8 --friendliness 7 --creativity 9\n   lopperater rate --market ID --stall-name NAME --phone NUMBER --selection 8 ...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "stall", Usage: "stall id"},
			&cli.StringFlag{Name: "market", Usage: "market id, used with --stall-name"},
			&cli.StringFlag{Name: "stall-name"},
			&cli.StringFlag{Name: "phone", Usage: "the stall's MobilePay number"},
			&cli.StringFlag{Name: "sign-text", Usage: "text read off the stall's sign, searched for a phone number when --phone is empty"},
			&cli.Float64Flag{Name: "selection"},
			&cli.Float64Flag{Name: "friendliness"},
			&cli.Float64Flag{Name: "creativity"},
			&cli.StringFlag{Name: "comment"},
		},
		Action: r.withApp(func(c *cli.Context, app *application) error {
			scores := domain.Scores{
				Selection:    c.Float64("selection"),
				Friendliness: c.Float64("friendliness"),
				Creativity:   c.Float64("creativity"),
			}
			stallID := c.String("stall")
			if stallID == "" {
				id, err := resolveStall(c, app, scores)
				if err != nil {
					return err
				}
				stallID = id
			}

			created, err := app.state.AddRating(c.Context, domain.RatingDraft{
				StallID: stallID,
				Scores:  scores,
				Comment: optionalString(c, "comment"),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out, "Rating %s saved. %s\n", created.ID, rating.EncouragementMessage(created.Scores))

			ratings, averages, err := app.state.RefreshStallRatings(c.Context, stallID)
			if err != nil {
				app.logger.Warn().Err(err).Str("stall_id", stallID).Msg("could not refresh averages")
				return nil
			}
			printAverages(app.out, averages, len(ratings))
			return nil
		}),
	}
}

// resolveStall finds the named stall in the market, creating it when the
// market has no stall by that name.
func resolveStall(c *cli.Context, app *application, scores domain.Scores) (string, error) {
	phone := c.String("phone")
	if strings.TrimSpace(phone) == "" && c.String("sign-text") != "" {
		if found, ok := rating.ExtractPhoneNumber(c.String("sign-text")); ok {
			phone = found
		}
	}
	form, err := rating.ValidateRatingForm(c.String("stall-name"), phone, scores)
	if err != nil {
		return "", err
	}
	marketID := c.String("market")
	if marketID == "" {
		return "", &rating.MissingFieldError{Field: "market"}
	}

	stalls, err := app.state.LoadStalls(c.Context, marketID)
	if err != nil {
		return "", err
	}
	for _, s := range stalls {
		if strings.EqualFold(s.Name, form.StallName) {
			return s.ID, nil
		}
	}
	stall, err := app.state.CreateStall(c.Context, domain.StallDraft{
		MarketID: marketID,
		Name:     form.StallName,
		Phone:    &form.Phone,
	})
	if err != nil {
		return "", err
	}
	app.logger.Info().Str("stall_id", stall.ID).Str("market_id", marketID).Msg("created stall for rating")
	return stall.ID, nil
}

func ratingsCommand(r *runtime) *cli.Command {
	return &cli.Command{
		Name:  "ratings",
		Usage: "show a stall's ratings and averages",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "stall", Required: true},
		},
		Action: r.withApp(func(c *cli.Context, app *application) error {
			ratings, averages, err := app.state.RefreshStallRatings(c.Context, c.String("stall"))
			if err != nil {
				return err
			}
			printRatings(app.out, ratings)
			printAverages(app.out, averages, len(ratings))
			return nil
		}),
	}
}

func migrateCommand(r *runtime) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply database migrations (postgres backend)",
		Action: r.withApp(func(c *cli.Context, app *application) error {
			if app.db == nil {
				return apperr.NewValidation(fmt.Sprintf("migrate needs PERSISTENCE_BACKEND=%s", config.BackendPostgres))
			}
			applied, err := repository.Migrate(c.Context, app.db.Pool())
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out, "Applied %d migration(s)\n", applied)
			return nil
		}),
	}
}

func locationFlags(c *cli.Context) (*domain.Coordinates, error) {
	latSet, lonSet := c.IsSet("lat"), c.IsSet("lon")
	if !latSet && !lonSet {
		return nil, nil
	}
	if latSet != lonSet {
		return nil, apperr.NewValidation("--lat and --lon must be given together")
	}
	loc := domain.Coordinates{Latitude: c.Float64("lat"), Longitude: c.Float64("lon")}
	if !geo.ValidCoordinates(loc) {
		return nil, apperr.NewValidation("coordinates out of range")
	}
	return &loc, nil
}

func optionalString(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := strings.TrimSpace(c.String(name))
	if v == "" {
		return nil
	}
	return &v
}
