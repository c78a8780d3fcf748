package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"alumnisync/internal/app"
	"alumnisync/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginTop(1).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))
)

var alumniCmd = &cobra.Command{
	Use:   "alumni",
	Short: "Manage alumni records",
	Long:  "List, inspect, and import the alumni roster the sync pipeline maintains",
}

var listBatch string

var listAlumniCmd = &cobra.Command{
	Use:   "list",
	Short: "List alumni records, least recently synced first",
	RunE: func(cmd *cobra.Command, args []string) error {
		application := app.GetAppFromContext(cmd.Context())

		alumni, err := application.Store.ListAlumni(listBatch)
		if err != nil {
			return fmt.Errorf("failed to list alumni: %w", err)
		}
		if len(alumni) == 0 {
			fmt.Println("No alumni records. Import some with 'alumnisync alumni import <file.csv>'.")
			return nil
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("Alumni (%d)", len(alumni))))
		for _, a := range alumni {
			synced := "never"
			if a.LastSyncedAt != nil {
				synced = a.LastSyncedAt.Format("2006-01-02")
			}
			line := fmt.Sprintf("[%d] %s (%s)", a.ID, a.Name, a.RollNumber)
			if a.CurrentCompany != "" {
				line += " - " + a.CurrentTitle + " at " + a.CurrentCompany
			}
			fmt.Println(valueStyle.Render(line))
			fmt.Printf("    %s %s   %s %s\n",
				labelStyle.Render("Batch:"), a.Batch,
				labelStyle.Render("Last synced:"), synced)
		}
		return nil
	},
}

var showAlumniCmd = &cobra.Command{
	Use:   "show <id-or-roll-number>",
	Short: "Show one alumni record with its full history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application := app.GetAppFromContext(cmd.Context())

		var a *models.Alumni
		var err error
		if id, convErr := strconv.Atoi(args[0]); convErr == nil {
			a, err = application.Store.GetAlumniByID(id)
		} else {
			a, err = application.Store.GetAlumniByRollNumber(args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to load alumni: %w", err)
		}
		if a == nil {
			return fmt.Errorf("no alumni record matches %q", args[0])
		}

		fmt.Println(titleStyle.Render(a.Name))
		printField("Roll Number", a.RollNumber)
		printField("Batch", a.Batch)
		printField("Gender", a.Gender)
		printField("College Email", a.CollegeEmail)
		printField("Personal Email", a.PersonalEmail)
		printField("Corporate Email", a.CorporateEmail)
		printField("WhatsApp", a.WhatsappNumber)
		printField("Mobile", a.MobileNumber)
		printField("Profile", a.ProfileURL)
		printField("Company", a.CurrentCompany)
		printField("Title", a.CurrentTitle)
		printField("Location", a.Location)
		printField("Snapshot", a.DocumentURL)
		printField("Remarks", a.Remarks)
		if a.LastSyncedAt != nil {
			printField("Last Synced", a.LastSyncedAt.Format(time.RFC3339))
		} else {
			printField("Last Synced", "never")
		}

		jobs, err := application.Store.GetJobHistory(a.ID)
		if err != nil {
			return fmt.Errorf("failed to load job history: %w", err)
		}
		if len(jobs) > 0 {
			fmt.Println(titleStyle.Render("Job History"))
			for _, j := range jobs {
				fmt.Printf("  %s %s\n", labelStyle.Render(j.Title), valueStyle.Render("at "+j.Company))
				fmt.Printf("    %s\n", valueStyle.Render(formatJobSpan(j)))
			}
		}

		education, err := application.Store.GetEducationHistory(a.ID)
		if err != nil {
			return fmt.Errorf("failed to load education history: %w", err)
		}
		if len(education) > 0 {
			fmt.Println(titleStyle.Render("Education"))
			for _, e := range education {
				fmt.Printf("  %s %s\n", labelStyle.Render(e.Institution), valueStyle.Render(e.Degree))
				if e.StartYear > 0 || e.EndYear > 0 {
					fmt.Printf("    %s\n", valueStyle.Render(formatYearSpan(e.StartYear, e.EndYear)))
				}
			}
		}
		return nil
	},
}

// importColumns is the expected CSV header, in order.
var importColumns = []string{
	"roll_number", "batch", "name", "gender",
	"college_email", "personal_email", "whatsapp_number", "mobile_number",
	"profile_url",
}

var importAlumniCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import alumni records from a CSV roster",
	Long: `Imports records from a CSV file with the header:

  ` + strings.Join(importColumns, ",") + `

Rows whose roll number already exists are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application := app.GetAppFromContext(cmd.Context())

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open roster: %w", err)
		}
		defer f.Close()

		reader := csv.NewReader(f)
		header, err := reader.Read()
		if err != nil {
			return fmt.Errorf("failed to read header: %w", err)
		}
		col := map[string]int{}
		for i, name := range header {
			col[strings.TrimSpace(strings.ToLower(name))] = i
		}
		for _, required := range []string{"roll_number", "name"} {
			if _, ok := col[required]; !ok {
				return fmt.Errorf("roster is missing the %q column", required)
			}
		}
		field := func(row []string, name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		var imported, skipped int
		for line := 2; ; line++ {
			row, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}

			roll := field(row, "roll_number")
			name := field(row, "name")
			if roll == "" || name == "" {
				fmt.Fprintf(os.Stderr, "line %d: missing roll number or name, skipping\n", line)
				skipped++
				continue
			}

			existing, err := application.Store.GetAlumniByRollNumber(roll)
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			if existing != nil {
				skipped++
				continue
			}

			a := &models.Alumni{
				RollNumber:     roll,
				Batch:          field(row, "batch"),
				Name:           name,
				Gender:         field(row, "gender"),
				CollegeEmail:   field(row, "college_email"),
				PersonalEmail:  field(row, "personal_email"),
				WhatsappNumber: field(row, "whatsapp_number"),
				MobileNumber:   field(row, "mobile_number"),
				ProfileURL:     field(row, "profile_url"),
			}
			if err := application.Store.CreateAlumni(a); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			imported++
		}

		fmt.Println(titleStyle.Render("Import Complete"))
		fmt.Printf("%s %d imported, %d skipped\n", labelStyle.Render("Result:"), imported, skipped)
		return nil
	},
}

func printField(label, value string) {
	if value == "" {
		return
	}
	fmt.Printf("%s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

func formatJobSpan(j models.JobHistory) string {
	start := "?"
	if j.StartDate != nil {
		start = j.StartDate.Format("Jan 2006")
	}
	if j.EndDate == nil {
		return start + " - Present"
	}
	return start + " - " + j.EndDate.Format("Jan 2006")
}

func formatYearSpan(start, end int) string {
	switch {
	case start > 0 && end > 0:
		return fmt.Sprintf("%d - %d", start, end)
	case start > 0:
		return fmt.Sprintf("%d -", start)
	default:
		return fmt.Sprintf("- %d", end)
	}
}

func init() {
	listAlumniCmd.Flags().StringVar(&listBatch, "batch", "", "Filter by graduation batch")

	rootCmd.AddCommand(alumniCmd)
	alumniCmd.AddCommand(listAlumniCmd)
	alumniCmd.AddCommand(showAlumniCmd)
	alumniCmd.AddCommand(importAlumniCmd)
}
