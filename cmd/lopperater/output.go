package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Clark-Hu/lopperater/internal/domain"
	"github.com/Clark-Hu/lopperater/internal/geo"
	"github.com/Clark-Hu/lopperater/internal/rating"
	"github.com/Clark-Hu/lopperater/internal/session"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func displayName(u domain.User) string {
	if u.Name != "" {
		return u.Name
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

func printUser(w io.Writer, s session.Session) {
	u := s.User()
	fmt.Fprintf(w, "%s (%s)\n", displayName(u), u.ID)
	if u.Email != "" {
		fmt.Fprintf(w, "email:   %s\n", u.Email)
	}
	if len(u.Roles) > 0 {
		roles := make([]string, len(u.Roles))
		for i, r := range u.Roles {
			roles[i] = string(r)
		}
		fmt.Fprintf(w, "roles:   %s\n", strings.Join(roles, ", "))
	}
	if !s.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "expires: %s\n", s.ExpiresAt.Local().Format(time.RFC1123))
	}
}

func printMarkets(w io.Writer, markets []domain.RankedMarket) {
	if len(markets) == 0 {
		fmt.Fprintln(w, "No markets found")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tCITY\tDATES\tACTIVE\tDISTANCE")
	for _, m := range markets {
		distance := "-"
		if m.Distance != nil {
			distance = geo.FormatDistance(*m.Distance)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s - %s\t%t\t%s\n",
			m.ID, m.Name, m.Location.City,
			m.StartDate.Local().Format("2006-01-02"), m.EndDate.Local().Format("2006-01-02"),
			m.IsActive, distance)
	}
	tw.Flush()
}

func printStalls(w io.Writer, stalls []domain.Stall) {
	if len(stalls) == 0 {
		fmt.Fprintln(w, "No stalls yet")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tPHONE\tRATINGS\tSELECTION\tFRIENDLINESS\tCREATIVITY\tOVERALL")
	for _, s := range stalls {
		phone := "-"
		if s.Phone != nil {
			phone = rating.FormatPhoneNumber(*s.Phone)
		}
		avg := s.AverageRatings
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			s.ID, s.Name, phone, len(s.Ratings),
			score(avg.Selection), score(avg.Friendliness), score(avg.Creativity), score(avg.Overall))
	}
	tw.Flush()
}

func printRatings(w io.Writer, ratings []domain.Rating) {
	if len(ratings) == 0 {
		fmt.Fprintln(w, "No ratings yet")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "CREATED\tUSER\tSELECTION\tFRIENDLINESS\tCREATIVITY\tCOMMENT")
	for _, r := range ratings {
		comment := ""
		if r.Comment != nil {
			comment = *r.Comment
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"), r.UserID,
			score(r.Selection), score(r.Friendliness), score(r.Creativity), comment)
	}
	tw.Flush()
}

func printAverages(w io.Writer, avg domain.AverageRatings, count int) {
	fmt.Fprintf(w, "Averages over %d rating(s): selection %s, friendliness %s, creativity %s, overall %s\n",
		count, score(avg.Selection), score(avg.Friendliness), score(avg.Creativity), score(avg.Overall))
}

func printPhoto(w io.Writer, p domain.Photo) {
	fmt.Fprintf(w, "Photo %s (%s, %d bytes): %s", p.ID, p.Filename, p.Size, p.ProcessingStatus)
	if p.FaceCount != nil {
		fmt.Fprintf(w, ", %d face(s) blurred", *p.FaceCount)
	}
	fmt.Fprintln(w)
}

func score(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String()
}
