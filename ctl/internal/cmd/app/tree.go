package app

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thinkparq/ibackup-go/common/backup"
	"github.com/thinkparq/ibackup-go/ctl/internal/cmdfmt"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
	"github.com/thinkparq/ibackup-go/ctl/pkg/ctl/app"
)

type treeCfg struct {
	depth int
}

func newTreeCmd() *cobra.Command {
	cfg := treeCfg{}
	cmd := &cobra.Command{
		Use:   "tree <app>",
		Short: "Print the files of an application as a tree",
		Long: `Print the files of an application as a tree.

The application can be given as a bundle identifier (com.apple.Pages) or as any domain name
(AppDomain-com.apple.Pages, HomeDomain, CameraRollDomain, ...).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTreeCmd(cmd, args[0], cfg)
		},
	}
	cmd.Flags().IntVar(&cfg.depth, "depth", 0, "Only print this many levels below the domain (0 prints everything).")
	return cmd
}

func runTreeCmd(cmd *cobra.Command, appID string, cfg treeCfg) error {
	root, err := app.Tree(cmd.Context(), appID)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTree(root, cfg.depth, viper.GetBool(config.DebugKey)))
	return nil
}

func renderTree(root *backup.TreeNode, depth int, details bool) string {
	l := list.NewWriter()
	l.SetStyle(list.StyleConnectedLight)
	l.AppendItem(root.Name)

	var add func(n *backup.TreeNode, level int)
	add = func(n *backup.TreeNode, level int) {
		if depth > 0 && level > depth {
			return
		}
		l.Indent()
		for _, c := range n.Children {
			l.AppendItem(nodeLabel(c, details))
			add(c, level+1)
		}
		l.UnIndent()
	}
	add(root, 1)
	return l.Render()
}

func nodeLabel(n *backup.TreeNode, details bool) string {
	if n.Entry == nil {
		return n.Name + "/"
	}
	e := n.Entry
	switch e.Kind {
	case backup.KindDirectory:
		return n.Name + "/"
	case backup.KindSymlink:
		return n.Name + " -> " + e.LinkTarget
	}
	if details {
		return fmt.Sprintf("%s (%s, %s)", n.Name, cmdfmt.FormatBytes(e.Size), e.Key)
	}
	return fmt.Sprintf("%s (%s)", n.Name, cmdfmt.FormatBytes(e.Size))
}
