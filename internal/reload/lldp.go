package reload

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/paradise2017/phosphor-networkd/internal/cmdutil"
)

// LLDPConfigPath is where the LLDP daemon reads its managed-interface
// list. spec.md §6 mentions LLDP config emission + restart as an
// external interface "not algorithmically interesting"; it is
// supplemented here as a post-hook rather than elaborated further.
const LLDPConfigPath = "/etc/lldpd.conf"

// LLDPPostHook returns a Hook suitable for AddPostHook that emits
// /etc/lldpd.conf listing interfaces() and restarts lldpd.service only
// when the rendered content actually changed, to avoid a pointless
// restart on every reload firing.
func LLDPPostHook(interfaces func() []string) Hook {
	return func(ctx context.Context) error {
		names := interfaces()
		sort.Strings(names)
		content := renderLLDPConfig(names)

		existing, _ := os.ReadFile(LLDPConfigPath)
		if string(existing) == content {
			return nil
		}
		if err := os.WriteFile(LLDPConfigPath, []byte(content), 0644); err != nil {
			return fmt.Errorf("write %s: %w", LLDPConfigPath, err)
		}

		if _, err := cmdutil.RunMedium(ctx, "systemctl", "restart", "lldpd.service"); err != nil {
			return fmt.Errorf("restart lldpd.service: %w", err)
		}
		log.Printf("[reload] lldpd.conf updated and lldpd.service restarted")
		return nil
	}
}

func renderLLDPConfig(names []string) string {
	var sb strings.Builder
	sb.WriteString("# Managed by phosphornetd\n")
	for _, n := range names {
		fmt.Fprintf(&sb, "configure system interface pattern %s\n", n)
	}
	return sb.String()
}
