package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"moneybook/internal/api"
	"moneybook/internal/cli"
	"moneybook/internal/core"
	"moneybook/internal/log"
)

var buildVersion = "dev"

const requestTimeout = 20 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cli.LoadEnvFile()
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "login":
		err = commandLogin(args)
	case "register":
		err = commandRegister(args)
	case "logout":
		err = commandLogout(args)
	case "me":
		err = commandMe(args)
	case "health":
		err = commandHealth(args)
	case "summary":
		err = commandSummary(args)
	case "transactions", "tx":
		err = commandTransactions(args)
	case "categories", "cat":
		err = commandCategories(args)
	case "version", "--version", "-v":
		fmt.Println(strings.TrimSpace(buildVersion))
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", describe(err))
		os.Exit(1)
	}
}

// describe turns API failures into the message shown to the user.
func describe(err error) string {
	var apiErr *api.Error
	switch {
	case api.IsUnauthorized(err):
		return api.Message(err) + " (run 'moneybook-cli login')"
	case errors.As(err, &apiErr):
		return api.Message(err)
	default:
		return err.Error()
	}
}

// env bundles what every command needs: the stored profile and a client
// that sends its token.
type env struct {
	creds  *cli.FileCredentials
	client *api.Client
	apiURL string
}

func cliLogger() *log.Logger {
	level := slog.LevelWarn
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level = log.ParseLevel(v)
	}
	return log.New(log.Config{
		Level:     level,
		Format:    os.Getenv("LOG_FORMAT"),
		Component: log.ComponentCLI,
		Output:    os.Stderr,
	})
}

// open loads the profile and builds the client. The API URL comes from the
// flag, then MONEYBOOK_API_URL, then the profile.
func open(apiFlag string) (*env, error) {
	path, err := cli.DefaultCredentialsPath()
	if err != nil {
		return nil, err
	}
	creds, err := cli.LoadFileCredentials(path)
	if err != nil {
		return nil, err
	}
	apiURL := strings.TrimSpace(apiFlag)
	if apiURL == "" {
		apiURL = strings.TrimSpace(os.Getenv("MONEYBOOK_API_URL"))
	}
	if apiURL == "" {
		apiURL = creds.Profile().APIURL
	}
	logger := cliLogger()
	client, err := api.New(apiURL,
		api.WithCredentials(creds),
		api.WithLogger(logger),
		api.WithTimeout(requestTimeout),
		api.WithOnUnauthorized(func(ctx context.Context, _ string) {
			logger.WarnContext(ctx, "Stored token rejected, credentials cleared")
		}),
	)
	if err != nil {
		return nil, err
	}
	return &env{creds: creds, client: client, apiURL: client.BaseURL()}, nil
}

// authed is open plus the requirement that a token is stored.
func authed(apiFlag string) (*env, error) {
	e, err := open(apiFlag)
	if err != nil {
		return nil, err
	}
	if err := e.creds.RequireToken(); err != nil {
		return nil, err
	}
	return e, nil
}

func readPassword(given string, prompt string) (string, error) {
	if secret := strings.TrimSpace(given); secret != "" {
		return secret, nil
	}
	fmt.Print(prompt)
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bytes), nil
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+api.DefaultBaseURL+")")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := readPassword(*password, "Password: ")
	if err != nil {
		return err
	}

	e, err := open(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	res, err := e.client.Auth.Login(ctx, *email, secret)
	if err != nil {
		return err
	}
	if err := e.creds.Save(e.apiURL, res.Token, res.User); err != nil {
		return err
	}
	fmt.Printf("logged in as %s <%s>\n", res.User.Name, res.User.Email)
	return nil
}

func commandRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	name := fs.String("name", "", "Display name")
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	if strings.TrimSpace(*name) == "" {
		return errors.New("--name is required")
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := readPassword(*password, "Choose a password: ")
	if err != nil {
		return err
	}
	if len(secret) < 6 {
		return errors.New("password must be at least 6 characters")
	}

	e, err := open(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	res, err := e.client.Auth.Register(ctx, strings.TrimSpace(*name), strings.TrimSpace(*email), secret)
	if err != nil {
		return err
	}
	if err := e.creds.Save(e.apiURL, res.Token, res.User); err != nil {
		return err
	}
	fmt.Printf("account created, logged in as %s\n", res.User.Name)
	return nil
}

func commandLogout(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	fs.Parse(args)

	e, err := open("")
	if err != nil {
		return err
	}
	if err := e.creds.Clear(context.Background()); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func commandMe(args []string) error {
	fs := flag.NewFlagSet("me", flag.ExitOnError)
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	e, err := authed(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	user, err := e.client.Auth.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\t%s\n", user.ID, user.Name, user.Email)
	return nil
}

func commandHealth(args []string) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	e, err := open(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	h, err := e.client.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\n", h.Status, h.Message)
	return nil
}

func periodFlags(fs *flag.FlagSet) (*int, *int) {
	now := time.Now()
	year := fs.Int("year", now.Year(), "Year")
	month := fs.Int("month", int(now.Month()), "Month (1-12)")
	return year, month
}

func commandSummary(args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	year, month := periodFlags(fs)
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	p := core.Period{Year: *year, Month: *month}
	if err := p.Validate(); err != nil {
		return err
	}
	e, err := authed(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	s, err := e.client.Dashboard.Summary(ctx, p)
	if err != nil {
		return err
	}
	breakdown, err := e.client.Dashboard.ByCategory(ctx, p, core.Expense)
	if err != nil {
		return err
	}

	fmt.Println(p.String())
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Income\t%s\n", s.TotalIncome)
	fmt.Fprintf(w, "Expenses\t%s\n", s.TotalExpense)
	fmt.Fprintf(w, "Balance\t%s\n", s.Balance)
	fmt.Fprintf(w, "Transactions\t%d\n", s.TransactionCount)
	fmt.Fprintf(w, "Savings rate\t%d%%\n", s.SavingsRate())
	fmt.Fprintf(w, "Daily average spend\t%s\n", core.DailyAverage(s.TotalExpense, p.Days()))
	if len(breakdown) > 0 {
		fmt.Fprintln(w, "\t")
		for _, c := range breakdown {
			fmt.Fprintf(w, "%s %s\t%s\t%.1f%%\n", c.Icon, c.Name, c.Total, c.Percentage)
		}
	}
	return w.Flush()
}

func commandTransactions(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: moneybook-cli transactions [list|add|delete]")
	}
	switch args[0] {
	case "list", "ls":
		return transactionsList(args[1:])
	case "add":
		return transactionsAdd(args[1:])
	case "delete", "rm":
		return transactionsDelete(args[1:])
	default:
		return fmt.Errorf("unknown transactions command: %s", args[0])
	}
}

func transactionsList(args []string) error {
	fs := flag.NewFlagSet("transactions list", flag.ExitOnError)
	txType := fs.String("type", "", "income or expense")
	category := fs.String("category", "", "Category id")
	month := fs.Int("month", 0, "Month (1-12)")
	year := fs.Int("year", 0, "Year")
	search := fs.String("search", "", "Search description and note")
	limit := fs.Int("limit", 50, "Maximum number of transactions")
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	t, err := core.ParseTransactionType(*txType)
	if err != nil {
		return err
	}
	e, err := authed(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	txs, err := e.client.Transactions.List(ctx, core.TransactionFilter{
		Type:     t,
		Category: *category,
		Month:    *month,
		Year:     *year,
		Search:   *search,
		Limit:    *limit,
	})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, tx := range txs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s%s\t%s\n", tx.ID, tx.Date, tx.Category.Name(), tx.Type.Sign(), tx.Amount, tx.Description)
	}
	return w.Flush()
}

func transactionsAdd(args []string) error {
	fs := flag.NewFlagSet("transactions add", flag.ExitOnError)
	amount := fs.String("amount", "", "Amount, e.g. 120.50")
	txType := fs.String("type", string(core.Expense), "income or expense")
	category := fs.String("category", "", "Category id")
	date := fs.String("date", time.Now().Format(time.DateOnly), "Date (YYYY-MM-DD)")
	description := fs.String("description", "", "Short description")
	note := fs.String("note", "", "Longer note")
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	m, err := core.ParseAmount(*amount)
	if err != nil {
		return err
	}
	t, err := core.ParseTransactionType(*txType)
	if err != nil {
		return err
	}
	d, err := core.ParseDate(*date)
	if err != nil {
		return err
	}
	in := core.TransactionInput{
		Amount:      m,
		Type:        t,
		Category:    strings.TrimSpace(*category),
		Description: strings.TrimSpace(*description),
		Note:        strings.TrimSpace(*note),
		Date:        d,
	}
	if err := in.Validate(); err != nil {
		return err
	}

	e, err := authed(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	tx, err := e.client.Transactions.Create(ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("transaction created: %s (%s%s)\n", tx.ID, tx.Type.Sign(), tx.Amount)
	return nil
}

func transactionsDelete(args []string) error {
	fs := flag.NewFlagSet("transactions delete", flag.ExitOnError)
	id := fs.String("id", "", "Transaction id")
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}
	e, err := authed(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := e.client.Transactions.Delete(ctx, strings.TrimSpace(*id)); err != nil {
		return err
	}
	fmt.Println("transaction deleted")
	return nil
}

func commandCategories(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: moneybook-cli categories [list|add|delete]")
	}
	switch args[0] {
	case "list", "ls":
		return categoriesList(args[1:])
	case "add":
		return categoriesAdd(args[1:])
	case "delete", "rm":
		return categoriesDelete(args[1:])
	default:
		return fmt.Errorf("unknown categories command: %s", args[0])
	}
}

func categoriesList(args []string) error {
	fs := flag.NewFlagSet("categories list", flag.ExitOnError)
	txType := fs.String("type", "", "income or expense")
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	t, err := core.ParseTransactionType(*txType)
	if err != nil {
		return err
	}
	e, err := authed(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	cats, err := e.client.Categories.List(ctx, t)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, c := range cats {
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\n", c.ID, c.Icon, c.Name, c.Type, c.Color)
	}
	return w.Flush()
}

func categoriesAdd(args []string) error {
	fs := flag.NewFlagSet("categories add", flag.ExitOnError)
	name := fs.String("name", "", "Category name")
	txType := fs.String("type", string(core.Expense), "income or expense")
	icon := fs.String("icon", "", "Emoji icon")
	color := fs.String("color", "", "Hex color, e.g. #3b82f6")
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	t, err := core.ParseTransactionType(*txType)
	if err != nil {
		return err
	}
	in := core.CategoryInput{Name: *name, Type: t, Icon: *icon, Color: *color}.Normalize()
	if err := in.Validate(); err != nil {
		return err
	}
	e, err := authed(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	c, err := e.client.Categories.Create(ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("category created: %s (%s %s)\n", c.ID, c.Icon, c.Name)
	return nil
}

func categoriesDelete(args []string) error {
	fs := flag.NewFlagSet("categories delete", flag.ExitOnError)
	id := fs.String("id", "", "Category id")
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}
	e, err := authed(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := e.client.Categories.Delete(ctx, strings.TrimSpace(*id)); err != nil {
		return err
	}
	fmt.Println("category deleted")
	return nil
}

func printUsage() {
	fmt.Printf("moneybook-cli %s\n\n", buildVersion)
	fmt.Print(`Usage:
	moneybook-cli login --email user@example.com [--password secret] [--api http://localhost:5000/api]
	moneybook-cli register --name Ann --email user@example.com [--password secret]
	moneybook-cli logout
	moneybook-cli me
	moneybook-cli health
	moneybook-cli summary [--year 2024] [--month 3]
	moneybook-cli transactions list [--type income|expense] [--category id] [--month N] [--year N] [--search text] [--limit N]
	moneybook-cli transactions add --amount 120.50 --category <id> [--type expense] [--date 2024-03-10] [--description text] [--note text]
	moneybook-cli transactions delete --id <transaction-id>
	moneybook-cli categories list [--type income|expense]
	moneybook-cli categories add --name Food [--type expense] [--icon 🍜] [--color #ff0000]
	moneybook-cli categories delete --id <category-id>
	moneybook-cli version
`)
}
