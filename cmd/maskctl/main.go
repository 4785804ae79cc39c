// Command maskctl queries and operates the mask marketplace over its HTTP API.
//
// Usage:
//
//	maskctl [--server URL] [--token JWT] <command> [flags] [args]
//
// Commands: search, open, masks, purchase, cancel, top-users, totals.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"
)

const defaultServer = "http://localhost:8000"

type command struct {
	usage string
	run   func(ctx context.Context, c *client, fs *pflag.FlagSet, args []string, out io.Writer) error
}

var commands = map[string]command{
	"search":    {"search [--type pharmacy|mask] <query>", runSearch},
	"open":      {"open --day mon --time HH:MM", runOpen},
	"masks":     {"masks [--sort name|price] <pharmacy>", runMasks},
	"purchase":  {"purchase --pharmacy ID --mask ID --user ID --quantity N", runPurchase},
	"cancel":    {"cancel", runCancel},
	"top-users": {"top-users --start YYYY-MM-DD --end YYYY-MM-DD [--limit N]", runTopUsers},
	"totals":    {"totals --start YYYY-MM-DD --end YYYY-MM-DD", runTotals},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Getenv, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "maskctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, getenv func(string) string, out io.Writer) error {
	server := getenv("MASKCTL_SERVER")
	if server == "" {
		server = defaultServer
	}
	token := getenv("MASKCTL_TOKEN")

	global := pflag.NewFlagSet("maskctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.StringVar(&server, "server", server, "API base URL, MASKCTL_SERVER env")
	global.StringVar(&token, "token", token, "Operator token for purchase and cancel, MASKCTL_TOKEN env")
	if err := global.Parse(args); err != nil {
		return err
	}

	if global.NArg() == 0 {
		return errors.New(usage())
	}

	name := global.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q\n%s", name, usage())
	}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Usage = func() { fmt.Fprintf(os.Stderr, "usage: maskctl %s\n", cmd.usage) }

	return cmd.run(ctx, newClient(server, token), fs, global.Args()[1:], out)
}

func usage() string {
	var b strings.Builder
	b.WriteString("usage: maskctl [--server URL] [--token JWT] <command>\ncommands:\n")
	for _, name := range []string{"search", "open", "masks", "purchase", "cancel", "top-users", "totals"} {
		b.WriteString("  " + commands[name].usage + "\n")
	}
	return b.String()
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	return table
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

func runSearch(ctx context.Context, c *client, fs *pflag.FlagSet, args []string, out io.Writer) error {
	kind := fs.String("type", "pharmacy", "What to search: pharmacy or mask")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")

	var found []searchResult
	err := c.call(ctx, http.MethodGet, "/api/search", map[string]string{"type": *kind, "q": query}, nil, &found)
	if err != nil {
		return err
	}

	table := newTable(out, "Name", "Relevance")
	for _, r := range found {
		table.Append([]string{r.Name, strconv.FormatFloat(r.Relevance, 'f', 4, 64)})
	}
	table.Render()
	return nil
}

func runOpen(ctx context.Context, c *client, fs *pflag.FlagSet, args []string, out io.Writer) error {
	day := fs.String("day", "", "Day of week: mon..sun")
	at := fs.String("time", "", "Time of day HH:MM")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var open []pharmacy
	err := c.call(ctx, http.MethodGet, "/api/pharmacies/open", map[string]string{"day": *day, "time": *at}, nil, &open)
	if err != nil {
		return err
	}

	table := newTable(out, "ID", "Pharmacy")
	for _, p := range open {
		table.Append([]string{id(p.ID), p.Name})
	}
	table.Render()
	return nil
}

func runMasks(ctx context.Context, c *client, fs *pflag.FlagSet, args []string, out io.Writer) error {
	sortBy := fs.String("sort", "name", "Sort by name or price")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("pharmacy name is required")
	}

	var listings []listing
	path := "/api/pharmacies/" + url.PathEscape(fs.Arg(0)) + "/masks"
	err := c.call(ctx, http.MethodGet, path, map[string]string{"sort_by": *sortBy}, nil, &listings)
	if err != nil {
		return err
	}

	table := newTable(out, "Mask ID", "Mask", "Price")
	for _, l := range listings {
		table.Append([]string{id(l.MaskID), l.Name, l.Price})
	}
	table.Render()
	return nil
}

func runPurchase(ctx context.Context, c *client, fs *pflag.FlagSet, args []string, out io.Writer) error {
	var req purchaseRequest
	fs.Int64Var(&req.PharmacyID, "pharmacy", 0, "Pharmacy ID")
	fs.Int64Var(&req.MaskID, "mask", 0, "Mask ID")
	fs.Int64Var(&req.UserID, "user", 0, "User ID")
	fs.IntVar(&req.Quantity, "quantity", 1, "Number of packs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var receipt purchaseReceipt
	if err := c.call(ctx, http.MethodPost, "/api/purchases", nil, req, &receipt); err != nil {
		return err
	}

	table := newTable(out, "Field", "Value")
	table.AppendBulk([][]string{
		{"Transaction", id(receipt.TransactionID)},
		{"User", receipt.UserName},
		{"Pharmacy", receipt.PharmacyName},
		{"Mask", receipt.MaskName},
		{"Quantity", strconv.Itoa(receipt.Quantity)},
		{"Total cost", receipt.TotalCost},
		{"Date", receipt.TransactionDate},
	})
	table.SetCaption(true, receipt.Message)
	table.Render()
	return nil
}

func runCancel(ctx context.Context, c *client, fs *pflag.FlagSet, args []string, out io.Writer) error {
	if err := fs.Parse(args); err != nil {
		return err
	}

	var receipt cancelReceipt
	if err := c.call(ctx, http.MethodDelete, "/api/transactions/latest", nil, nil, &receipt); err != nil {
		return err
	}

	table := newTable(out, "Field", "Value")
	table.AppendBulk([][]string{
		{"Transaction", id(receipt.TransactionID)},
		{"User", receipt.UserName},
		{"Pharmacy", receipt.PharmacyName},
		{"Mask", receipt.MaskName},
		{"Refunded", receipt.TransactionAmount},
	})
	table.SetCaption(true, receipt.Message)
	table.Render()
	return nil
}

func runTopUsers(ctx context.Context, c *client, fs *pflag.FlagSet, args []string, out io.Writer) error {
	start := fs.String("start", "", "Start date YYYY-MM-DD")
	end := fs.String("end", "", "End date YYYY-MM-DD, inclusive")
	limit := fs.Int("limit", 5, "Number of users")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var users []userSpending
	query := map[string]string{"start_date": *start, "end_date": *end, "limit": strconv.Itoa(*limit)}
	if err := c.call(ctx, http.MethodGet, "/api/users/top", query, nil, &users); err != nil {
		return err
	}

	table := newTable(out, "ID", "User", "Total", "Transactions")
	for _, u := range users {
		table.Append([]string{id(u.ID), u.Name, u.TotalAmount, strconv.FormatInt(u.TransactionCount, 10)})
	}
	table.Render()
	return nil
}

func runTotals(ctx context.Context, c *client, fs *pflag.FlagSet, args []string, out io.Writer) error {
	start := fs.String("start", "", "Start date YYYY-MM-DD")
	end := fs.String("end", "", "End date YYYY-MM-DD, inclusive")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var t totals
	query := map[string]string{"start_date": *start, "end_date": *end}
	if err := c.call(ctx, http.MethodGet, "/api/transactions/totals", query, nil, &t); err != nil {
		return err
	}

	table := newTable(out, "Masks sold", "Amount")
	table.Append([]string{strconv.FormatInt(t.TotalMasks, 10), t.TotalAmount})
	table.Render()
	return nil
}
