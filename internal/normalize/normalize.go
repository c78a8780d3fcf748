package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"alumnisync/pkg/models"
)

var (
	dateRangeRe = regexp.MustCompile(`(?i)([A-Za-z]{3,9}\s+\d{4})\s*[-–]\s*([A-Za-z]{3,9}\s+\d{4}|Present)`)
	yearRangeRe = regexp.MustCompile(`(\d{4})\s*[-–]\s*(\d{4})`)
	yearRe      = regexp.MustCompile(`\d{4}`)
	profileIDRe = regexp.MustCompile(`linkedin\.com/in/([^/?#]+)`)
)

// Normalize converts raw scraped fields into the canonical profile shape.
// It never fails: missing optional fields stay unset, and history entries
// that lack a company or institution name are dropped rather than stored
// with blanks. Normalizing the same input twice yields identical output.
func Normalize(raw *models.RawProfile) models.NormalizedProfile {
	p := models.NormalizedProfile{
		ProfileID:  ProfileID(raw.ProfileURL),
		ProfileURL: raw.ProfileURL,
		Name:       clean(raw.Name),
		Location:   clean(raw.Location),
		Email:      clean(raw.Email),
	}

	// "Engineer at Acme" style headlines carry the current position
	title, company := splitHeadline(raw.Headline)
	p.Title = title
	p.Company = company

	for _, exp := range raw.Experiences {
		company := clean(exp.Company)
		if company == "" {
			continue
		}
		entry := models.JobHistory{
			Company:        company,
			Title:          clean(exp.Title),
			Location:       clean(exp.Location),
			EmploymentType: clean(exp.EmploymentType),
		}
		start, end := parseDateRange(exp.Duration)
		entry.StartDate = start
		entry.EndDate = end
		p.Jobs = append(p.Jobs, entry)
	}

	// The first experience with no end date refines the current-position
	// snapshot when the headline gave us nothing
	if p.Company == "" {
		for _, j := range p.Jobs {
			if j.EndDate == nil {
				p.Company = j.Company
				if p.Title == "" {
					p.Title = j.Title
				}
				break
			}
		}
	}

	for _, edu := range raw.Educations {
		institution := clean(edu.Institution)
		if institution == "" {
			continue
		}
		entry := models.EducationHistory{
			Institution: institution,
			Grade:       clean(edu.Grade),
			Activities:  clean(edu.Activities),
		}
		entry.Degree, entry.FieldOfStudy = splitDegree(edu.Degree)
		entry.StartYear, entry.EndYear = parseYearRange(edu.Years)
		p.Educations = append(p.Educations, entry)
	}

	return p
}

// ProfileID extracts the stable public identifier from a profile URL,
// e.g. "https://www.linkedin.com/in/asha-rao/" -> "asha-rao".
func ProfileID(profileURL string) string {
	m := profileIDRe.FindStringSubmatch(profileURL)
	if m == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(m[1]))
}

// splitHeadline splits "Title at Company" headlines; anything without an
// " at " separator is treated as a bare title.
func splitHeadline(headline string) (title, company string) {
	headline = clean(headline)
	if headline == "" {
		return "", ""
	}
	idx := strings.Index(strings.ToLower(headline), " at ")
	if idx < 0 {
		return headline, ""
	}
	return clean(headline[:idx]), clean(headline[idx+4:])
}

// splitDegree splits "B.Tech, Computer Science" into degree and field.
func splitDegree(s string) (degree, field string) {
	s = clean(s)
	if s == "" {
		return "", ""
	}
	if i := strings.Index(s, ","); i >= 0 {
		return clean(s[:i]), clean(s[i+1:])
	}
	return s, ""
}

// parseDateRange parses "Jan 2020 - Present" or "Jan 2020 - Dec 2023" style
// duration text. A "Present" end (or a missing match) leaves the end date
// nil, marking the entry open.
func parseDateRange(duration string) (start, end *time.Time) {
	m := dateRangeRe.FindStringSubmatch(duration)
	if m == nil {
		return nil, nil
	}
	if t, err := time.Parse("Jan 2006", m[1]); err == nil {
		start = &t
	}
	if !strings.EqualFold(m[2], "present") {
		if t, err := time.Parse("Jan 2006", m[2]); err == nil {
			end = &t
		}
	}
	return start, end
}

// parseYearRange parses "2018 - 2022" or a lone "2022" (end year only).
func parseYearRange(years string) (start, end int) {
	if m := yearRangeRe.FindStringSubmatch(years); m != nil {
		start, _ = strconv.Atoi(m[1])
		end, _ = strconv.Atoi(m[2])
		return start, end
	}
	if m := yearRe.FindString(years); m != "" {
		end, _ = strconv.Atoi(m)
	}
	return start, end
}

func clean(s string) string {
	return strings.TrimSpace(s)
}
