package main

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/net/publicsuffix"

	"github.com/haukened/wb-access/internal/access/common/surt"
	"github.com/haukened/wb-access/internal/access/gateways/canon"
)

var termsCmd = &cobra.Command{
	Use:   "terms [url]...",
	Short: "Print the SURT search terms of URLs",
	Long: `Canonicalizes each URL and prints its search terms from most to least
specific, which is the order the whitelist is consulted in. Also prints
the registrable domain, which a whitelist line of just that domain covers.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTerms,
}

func init() {
	rootCmd.AddCommand(termsCmd)
}

func runTerms(cmd *cobra.Command, args []string) error {
	name := canonFlag
	if name == "" {
		name = canon.NameAggressive
	}
	c, err := canon.ByName(name)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, raw := range args {
		key, err := c.ToKey(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", raw, err)
		}
		tok, err := surt.NewTokenizer(key, c.SURTOrdered())
		if err != nil {
			return fmt.Errorf("%s: %w", raw, err)
		}
		fmt.Fprintf(out, "%s\n  key: %s\n  surt: %s\n", raw, key, tok.Key())
		if d, err := registrableDomain(key); err == nil {
			fmt.Fprintf(out, "  registrable domain: %s\n", d)
		}
		for i := 1; ; i++ {
			term, ok := tok.Next()
			if !ok {
				break
			}
			fmt.Fprintf(out, "  %2d %s\n", i, term)
		}
	}
	return nil
}

// registrableDomain returns the public-suffix-plus-one of a canonical key
// in either URL or SURT form.
func registrableDomain(key string) (string, error) {
	host, err := hostOf(key)
	if err != nil {
		return "", err
	}
	if net.ParseIP(host) != nil {
		return "", fmt.Errorf("no registrable domain for address %s", host)
	}
	return publicsuffix.EffectiveTLDPlusOne(host)
}

func hostOf(key string) (string, error) {
	if surt.IsKey(key) {
		h := key[:strings.IndexByte(key, ')')]
		if i := strings.IndexByte(h, '@'); i >= 0 {
			h = h[:i]
		}
		if strings.HasPrefix(h, "[") {
			return "", fmt.Errorf("no registrable domain for %s", h)
		}
		if i := strings.IndexByte(h, ':'); i >= 0 {
			h = h[:i]
		}
		labels := strings.Split(h, ",")
		for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
			labels[i], labels[j] = labels[j], labels[i]
		}
		return strings.Join(labels, "."), nil
	}
	if !strings.Contains(key, "://") {
		key = "http://" + key
	}
	u, err := url.Parse(key)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("no host in %s", key)
	}
	return u.Hostname(), nil
}
