package render

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/potlam/cloudprint/internal/config"
	"github.com/potlam/cloudprint/internal/core"
)

// Generator turns a queued order into the binary payload a Star printer
// accepts: it fills the star markup template with the order's values,
// writes a <uuid>.stm file to the temp dir and runs cputil decode to
// produce the <uuid>.cp file returned to the printer. Both files stay on
// disk until the printer's cleanup call.
type Generator struct {
	templatePath string
	tempDir      string
	cputilPath   string
	cputilFormat string
	logger       *zap.Logger
}

func NewGenerator(cfg config.PrintingConfig, logger *zap.Logger) *Generator {
	return &Generator{
		templatePath: cfg.TemplatePath,
		tempDir:      cfg.TempDir,
		cputilPath:   cfg.CputilPath,
		cputilFormat: cfg.CputilFormat,
		logger:       logger,
	}
}

func (g *Generator) Render(ctx context.Context, order *core.Order) ([]byte, error) {
	po, err := core.ParsePrintOrder(order.PrintOrder)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", order.UUID, err)
	}

	template, err := os.ReadFile(g.templatePath)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	values := map[string]string{
		"LOGO_IMAGE_URL":      order.Restaurant.LogoURL,
		"ORDER_RECEIPT_TITLE": order.Restaurant.Name,
		"ORDER_DATETIME":      po.OrderDate + " " + po.OrderTime,
		"ORDER_ITEM_ROWS":     itemRows(po),
		"FOOTER_MESSAGE":      order.Restaurant.Message,
	}

	content := string(template)
	for key, value := range values {
		content = strings.ReplaceAll(content, "{"+key+"}", value)
	}

	stmFile := filepath.Join(g.tempDir, order.UUID+".stm")
	cpFile := filepath.Join(g.tempDir, order.UUID+".cp")

	if err := os.WriteFile(stmFile, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write markup file: %w", err)
	}

	cmd := exec.CommandContext(ctx, g.cputilPath, "decode", g.cputilFormat, stmFile, cpFile)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("cputil decode failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	payload, err := os.ReadFile(cpFile)
	if err != nil {
		return nil, fmt.Errorf("read cp file: %w", err)
	}

	g.logger.Info("cp file created",
		zap.String("uuid", order.UUID),
		zap.String("file", cpFile),
		zap.Int("bytes", len(payload)))

	return payload, nil
}

// Cleanup removes the tmp files rendered for an order. Already-removed
// files are fine; the cleanup call may be retried by the printer.
func (g *Generator) Cleanup(uuid string) error {
	for _, name := range []string{uuid + ".stm", uuid + ".cp"} {
		if err := os.Remove(filepath.Join(g.tempDir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

// itemRows formats the order's items and their toppings as star markup
// column rows, item name on the left and quantity on the right.
func itemRows(po *core.PrintOrder) string {
	var b strings.Builder
	b.WriteString("[column: left: Item; right: Quantity]\n")

	for _, detail := range po.OrderDetails {
		if detail.ItemName == "" {
			continue
		}
		writeRow(&b, detail.ItemName, detail.Quantity)

		for _, t := range toppings(detail.ToppingsDetails) {
			qty := t.Qty
			if qty == "" {
				qty = "1"
			}
			writeRow(&b, " - "+t.ToppingName, qty)
		}
	}

	return b.String()
}

func writeRow(b *strings.Builder, left, right string) {
	fmt.Fprintf(b, "[column: left: %s; right: %s]\n", left, right)
}

// toppings extracts every named topping from both groups, tolerating the
// backend's habit of sending empty arrays in place of group objects.
func toppings(raw json.RawMessage) []core.Topping {
	if len(raw) == 0 {
		return nil
	}

	var td core.ToppingsDetail
	if err := json.Unmarshal(raw, &td); err != nil {
		return nil
	}

	var out []core.Topping
	for _, group := range [][]json.RawMessage{td.CommonToppings, td.NormalToppings} {
		for _, entry := range group {
			var te core.ToppingEntry
			if err := json.Unmarshal(entry, &te); err != nil {
				continue
			}
			if te.Toppings.ToppingName != "" {
				out = append(out, te.Toppings)
			}
		}
	}
	return out
}
