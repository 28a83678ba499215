package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/cli"
	"github.com/ledgerline/ledgerline/internal/ofx"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.ofx>",
		Short: "Import transactions from an OFX/QFX bank export",
		Long: `Parse an OFX/QFX file and save its transactions. Transactions already
imported are recognized by their content hash and skipped, so re-running
an import is safe.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("user", "", "user to import transactions for")
	cmd.Flags().Bool("list-accounts", false, "list the accounts in the file without importing")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	filePath := args[0]

	listAccounts, _ := cmd.Flags().GetBool("list-accounts")
	parser := ofx.NewParser()

	if listAccounts {
		file, err := os.Open(filePath)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", filePath, err)
		}
		defer func() { _ = file.Close() }()

		accounts, err := parser.GetAccounts(file)
		if err != nil {
			return err
		}
		for _, account := range accounts {
			fmt.Println(account)
		}
		return nil
	}

	userFlag, _ := cmd.Flags().GetString("user")
	userID, err := resolveUser(userFlag)
	if err != nil {
		return err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer func() { _ = file.Close() }()

	transactions, err := parser.ParseFile(file, userID)
	if err != nil {
		return err
	}
	if len(transactions) == 0 {
		fmt.Println(cli.FormatInfo("No transactions found in file."))
		return nil
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStore(store)

	if err := store.SaveTransactions(ctx, transactions); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d transactions from %s (duplicates skipped)", len(transactions), filePath)))
	fmt.Println(cli.FormatInfo("Categorize them with: ledgerline categorize"))
	return nil
}
