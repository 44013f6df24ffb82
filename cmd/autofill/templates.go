package main

import (
	"fmt"
	"strconv"

	"github.com/entrhq/autofill/pkg/templates"
	"github.com/spf13/cobra"
)

// templatesCmd manages site templates
var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage site templates",
	Long: `Site templates map a site's question wording to profile keys. The
template whose site_url matches the form is applied for the session.

Subcommands:
  list    - List installed templates
  import  - Copy a template file into the library
  install - Install the built-in templates
  remove  - Remove a template`,
	RunE: runTemplatesList,
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed templates",
	RunE:  runTemplatesList,
}

var templatesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Copy a template file into the library",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesImport,
}

var templatesInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the built-in templates",
	RunE:  runTemplatesInstall,
}

var templatesRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a template",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesRemove,
}

func init() {
	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesImportCmd)
	templatesCmd.AddCommand(templatesInstallCmd)
	templatesCmd.AddCommand(templatesRemoveCmd)
}

func openLibrary() (*templates.Library, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.TemplatesDir == "" {
		return nil, fmt.Errorf("no templates_dir configured")
	}
	return templates.Open(cfg.TemplatesDir)
}

func runTemplatesList(cmd *cobra.Command, _ []string) error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	names := lib.Names()
	if len(names) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), `No templates installed. Run "autofill templates install" for the built-in ones.`)
		return nil
	}

	t := newTable("Name", "Site", "Fields", "Used", "Last used")
	for _, n := range names {
		tpl, err := lib.Get(n)
		if err != nil {
			return err
		}
		last := "never"
		if tpl.LastUsed != nil {
			last = tpl.LastUsed.Local().Format("2006-01-02 15:04")
		}
		t.Row(tpl.Name, tpl.SiteURL, strconv.Itoa(len(tpl.FieldMappings)), strconv.Itoa(tpl.UseCount), last)
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.String())
	return nil
}

func runTemplatesImport(cmd *cobra.Command, args []string) error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	tpl, err := lib.Import(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ imported %s (%d fields)\n", tpl.Name, len(tpl.FieldMappings))
	return nil
}

func runTemplatesInstall(cmd *cobra.Command, _ []string) error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	before := len(lib.Names())
	if err := lib.InstallDefaults(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ installed %d templates\n", len(lib.Names())-before)
	return nil
}

func runTemplatesRemove(cmd *cobra.Command, args []string) error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	if err := lib.Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ removed %s\n", args[0])
	return nil
}
