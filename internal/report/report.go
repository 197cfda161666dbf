// Package report печатает итог сценария в терминал.
package report

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/tokensale/internal/chain"
	"github.com/rovshanmuradov/tokensale/internal/scenario"
	"github.com/rovshanmuradov/tokensale/internal/types"
	"github.com/rovshanmuradov/tokensale/internal/units"
)

// Holder балансы одного участника.
type Holder struct {
	Name    string
	Address string
	Sale    string
	Pay     string
}

// Alert строка раздела алертов.
type Alert struct {
	Severity string
	Message  string
}

// Snapshot состояние продажи на момент отчёта.
type Snapshot struct {
	Symbol    string
	PaySymbol string
	Flow      string
	Height    uint64
	Price     string
	Supply    string
	Reserve   string
	Liquidity string
	// Solvent liquidity >= reserve
	Solvent bool
	Holders []Holder
	Alerts  []Alert
}

// Collect читает состояние продажи и балансы известных кошельков.
func Collect(ctx context.Context, env scenario.Env) (Snapshot, error) {
	s := env.Sale
	pay := env.PayToken
	snap := Snapshot{
		Symbol:    s.Symbol(),
		PaySymbol: pay.Symbol(),
		Flow:      string(s.Flow()),
		Height:    env.Runtime.Height(),
	}

	var reserve, liquidity *uint256.Int
	err := env.Runtime.View(ctx, s.Address(), func(c *chain.Context) error {
		price, err := s.Price(c)
		if err != nil {
			return err
		}
		if reserve, err = s.Reserve(c); err != nil {
			return err
		}
		if liquidity, err = s.Liquidity(c); err != nil {
			return err
		}
		snap.Price = units.Ratio(price, s.PricePrecision()).String()
		snap.Supply = units.FormatUnits(s.TotalSupply(c), s.Decimals())
		snap.Reserve = units.FormatUnits(reserve, pay.Decimals())
		snap.Liquidity = units.FormatUnits(liquidity, pay.Decimals())
		return nil
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read sale state: %w", err)
	}
	snap.Solvent = !liquidity.Lt(reserve)

	names := []string{scenario.AccountOwner}
	for _, name := range env.Wallets.Names() {
		if name != scenario.AccountOwner {
			names = append(names, name)
		}
	}
	for _, name := range names {
		addr := env.Owner
		if name != scenario.AccountOwner {
			w, err := env.Wallets.Get(name)
			if err != nil {
				return Snapshot{}, err
			}
			addr = w.Address()
		}
		h := Holder{Name: name, Address: types.ShortAddress(addr)}
		err := env.Runtime.View(ctx, s.Address(), func(c *chain.Context) error {
			h.Sale = units.FormatUnits(s.BalanceOf(c, addr), s.Decimals())
			return c.StaticCall(pay.Address(), func(tc *chain.Context) error {
				h.Pay = units.FormatUnits(pay.BalanceOf(tc, addr), pay.Decimals())
				return nil
			})
		})
		if err != nil {
			return Snapshot{}, err
		}
		snap.Holders = append(snap.Holders, h)
	}
	return snap, nil
}

type styles struct {
	title  lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	good   lipgloss.Style
	bad    lipgloss.Style
	warn   lipgloss.Style
	header lipgloss.Style
	cell   lipgloss.Style
	border lipgloss.Style
}

var (
	cyan    = lipgloss.Color("#00E5FF")
	magenta = lipgloss.Color("#FF1B6B")
	green   = lipgloss.Color("#2AFFAA")
	red     = lipgloss.Color("#FF5555")
	yellow  = lipgloss.Color("#FFB500")
	muted   = lipgloss.Color("#6C7280")
	text    = lipgloss.Color("#ECEFF4")
)

func newStyles() styles {
	return styles{
		title:  lipgloss.NewStyle().Foreground(cyan).Bold(true).MarginBottom(1),
		label:  lipgloss.NewStyle().Foreground(muted).Width(12),
		value:  lipgloss.NewStyle().Foreground(text).Bold(true),
		good:   lipgloss.NewStyle().Foreground(green).Bold(true),
		bad:    lipgloss.NewStyle().Foreground(red).Bold(true),
		warn:   lipgloss.NewStyle().Foreground(yellow).Bold(true),
		header: lipgloss.NewStyle().Foreground(magenta).Bold(true).Padding(0, 1),
		cell:   lipgloss.NewStyle().Foreground(text).Padding(0, 1),
		border: lipgloss.NewStyle().Foreground(muted),
	}
}

// Render итоговый отчёт: состояние кривой, держатели и результаты шагов.
func Render(snap Snapshot, results []scenario.Result) string {
	st := newStyles()

	status := st.good.Render("solvent")
	if !snap.Solvent {
		status = st.bad.Render("UNDERFUNDED")
	}
	line := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, st.label.Render(label), st.value.Render(value))
	}
	summary := lipgloss.JoinVertical(lipgloss.Left,
		st.title.Render(fmt.Sprintf("%s / %s (%s flow)", snap.Symbol, snap.PaySymbol, snap.Flow)),
		line("price", snap.Price+" "+snap.PaySymbol),
		line("supply", snap.Supply+" "+snap.Symbol),
		line("reserve", snap.Reserve+" "+snap.PaySymbol),
		line("liquidity", snap.Liquidity+" "+snap.PaySymbol),
		line("height", strconv.FormatUint(snap.Height, 10)),
		lipgloss.JoinHorizontal(lipgloss.Top, st.label.Render("status"), status),
	)

	holders := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(st.border).
		Headers("ACCOUNT", "ADDRESS", snap.Symbol, snap.PaySymbol).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.header
			}
			return st.cell
		})
	for _, h := range snap.Holders {
		holders.Row(h.Name, h.Address, h.Sale, h.Pay)
	}

	parts := []string{summary, holders.String()}
	if len(results) > 0 {
		parts = append(parts, renderResults(st, results))
	}
	if len(snap.Alerts) > 0 {
		parts = append(parts, renderAlerts(st, snap.Alerts))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

func renderResults(st styles, results []scenario.Result) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(st.border).
		Headers("#", "STEP", "ACCOUNT", "TRIES", "RESULT")

	failed := make(map[int]bool)
	for i, r := range results {
		outcome := "ok"
		switch {
		case r.Expected:
			outcome = "expected: " + shortError(r.Err)
		case r.Err != nil:
			outcome = "FAILED: " + shortError(r.Err)
			failed[i] = true
		case r.Quote != nil:
			outcome = fmt.Sprintf("ok %s for %s", r.Quote.Amount, r.Quote.PayAmount)
		}
		t.Row(strconv.Itoa(r.Index), r.Name, r.Account, strconv.Itoa(r.Attempts), outcome)
	}

	t.StyleFunc(func(row, _ int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return st.header
		case failed[row]:
			return st.cell.Foreground(red)
		default:
			return st.cell
		}
	})
	return t.String()
}

func renderAlerts(st styles, alerts []Alert) string {
	lines := []string{st.header.Render("ALERTS")}
	for _, a := range alerts {
		sev := st.value
		switch a.Severity {
		case "critical":
			sev = st.bad
		case "warning":
			sev = st.warn
		}
		lines = append(lines, " "+sev.Render(strings.ToUpper(a.Severity))+" "+a.Message)
	}
	return lipgloss.NewStyle().MarginTop(1).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// shortError первая часть цепочки ошибок, без деталей обёрток
func shortError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i > 0 && len(msg)-i > 20 {
		return msg[i+2:]
	}
	return msg
}
