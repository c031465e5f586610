package main

import (
	"fmt"
	"net/mail"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tenkay/filing-pipeline/internal/model"
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Manage tracked companies",
}

var seedFile string

var companiesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upsert companies from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		data, err := os.ReadFile(seedFile)
		if err != nil {
			return eris.Wrapf(err, "read %s", seedFile)
		}
		companies, err := parseSeed(data)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "companies")
		if err != nil {
			return err
		}
		defer env.Close()

		for i := range companies {
			if err := env.Store.UpsertCompany(ctx, &companies[i]); err != nil {
				return err
			}
		}
		zap.L().Info("companies seeded", zap.Int("count", len(companies)), zap.String("file", seedFile))
		fmt.Printf("seeded %d companies\n", len(companies))
		return nil
	},
}

type seedEntry struct {
	Ticker  string `yaml:"ticker"`
	CIK     string `yaml:"cik"`
	Name    string `yaml:"name"`
	Sector  string `yaml:"sector"`
	Enabled *bool  `yaml:"enabled"`
}

// parseSeed decodes a companies file. Entries are enabled unless they say
// otherwise; duplicate tickers are rejected.
func parseSeed(data []byte) ([]model.Company, error) {
	var doc struct {
		Companies []seedEntry `yaml:"companies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "parse companies file")
	}

	seen := make(map[string]bool, len(doc.Companies))
	out := make([]model.Company, 0, len(doc.Companies))
	for i, e := range doc.Companies {
		ticker := strings.ToUpper(strings.TrimSpace(e.Ticker))
		if ticker == "" {
			return nil, eris.Errorf("companies[%d]: ticker is required", i)
		}
		if seen[ticker] {
			return nil, eris.Errorf("companies[%d]: duplicate ticker %s", i, ticker)
		}
		seen[ticker] = true

		name := strings.TrimSpace(e.Name)
		if name == "" {
			name = ticker
		}
		enabled := true
		if e.Enabled != nil {
			enabled = *e.Enabled
		}
		out = append(out, model.Company{
			Ticker:  ticker,
			CIK:     strings.TrimSpace(e.CIK),
			Name:    name,
			Sector:  strings.TrimSpace(e.Sector),
			Enabled: enabled,
		})
	}
	return out, nil
}

var companiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initPipeline(ctx, "companies")
		if err != nil {
			return err
		}
		defer env.Close()

		companies, err := env.Store.ListCompanies(ctx, false)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TICKER\tCIK\tNAME\tSECTOR\tENABLED")
		for _, c := range companies {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", c.Ticker, c.CIK, c.Name, c.Sector, c.Enabled)
		}
		return tw.Flush()
	},
}

var subscribersCmd = &cobra.Command{
	Use:   "subscribers",
	Short: "Manage email subscribers",
}

var (
	subEmail    string
	subName     string
	subTier     string
	subDisabled bool
)

var subscribersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update a subscriber",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sub, err := newSubscriber(subEmail, subName, subTier, !subDisabled)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "subscribers")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.UpsertSubscriber(ctx, sub); err != nil {
			return err
		}
		fmt.Printf("subscriber %s (%s) saved\n", sub.Email, sub.Tier)
		return nil
	},
}

func newSubscriber(email, firstName, tier string, enabled bool) (*model.Subscriber, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, eris.Wrapf(err, "invalid --email %q", email)
	}
	t, ok := model.ParseTier(strings.ToLower(tier))
	if !ok || t == model.TierAll {
		return nil, eris.Errorf("--tier must be free or paid, got %q", tier)
	}
	return &model.Subscriber{
		Email:     strings.ToLower(addr.Address),
		FirstName: strings.TrimSpace(firstName),
		Tier:      t,
		Enabled:   enabled,
	}, nil
}

func init() {
	companiesSeedCmd.Flags().StringVar(&seedFile, "file", "companies.yaml", "YAML file with a companies list")
	companiesCmd.AddCommand(companiesSeedCmd, companiesListCmd)

	subscribersAddCmd.Flags().StringVar(&subEmail, "email", "", "subscriber email address")
	subscribersAddCmd.Flags().StringVar(&subName, "first-name", "", "first name used in greetings")
	subscribersAddCmd.Flags().StringVar(&subTier, "tier", string(model.TierFree), "free or paid")
	subscribersAddCmd.Flags().BoolVar(&subDisabled, "disabled", false, "store the subscriber without sending to them")
	_ = subscribersAddCmd.MarkFlagRequired("email")
	subscribersCmd.AddCommand(subscribersAddCmd)

	rootCmd.AddCommand(companiesCmd, subscribersCmd)
}
