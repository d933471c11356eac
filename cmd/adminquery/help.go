package main

import "fmt"

const version = "0.3.0"

// PrintVersion prints version information
func PrintVersion() {
	fmt.Printf("adminquery version %s\n", version)
	fmt.Println("Admin panel query adapter: records, counts, charts and exports")
}

// PrintHelp prints help information
func PrintHelp() {
	fmt.Println("adminquery - admin panel query adapter")
	fmt.Printf("Version: %s\n\n", version)

	fmt.Println("USAGE:")
	fmt.Println("  adminquery [command] [options]")
	fmt.Println()

	fmt.Println("COMMANDS:")
	fmt.Println("    --list <collection>        List records (JSON to stdout)")
	fmt.Println("    --count <collection>       Count records matching filters")
	fmt.Println("    --stat <params-file>       Compute Line/Pie/Value chart")
	fmt.Println("    --export <collection>      Export records to CSV or XLSX")
	fmt.Println("    --invalidate <collection>  Drop cached charts of a collection")
	fmt.Println("    --create-config <type>     Create sample config.yaml")
	fmt.Println()

	fmt.Println("OPTIONS:")
	fmt.Println("    --config <file>            Configuration file (default: config.yaml)")
	fmt.Println("    --query <string>           Request query string")
	fmt.Println("    --output <file>            Output file")
	fmt.Println("    --format <csv|xlsx>        Export format (default: csv)")
	fmt.Println("    --sheet <name>             XLSX sheet name")
	fmt.Println("    --upload                   Upload export to S3")
	fmt.Println()

	fmt.Println("EXAMPLES:")
	fmt.Println("  adminquery --list users --query 'filter[status]=active&sort=-createdAt&page[size]=20'")
	fmt.Println("  adminquery --count users --query 'search=alice&searchExtended=1'")
	fmt.Println("  adminquery --stat orders-by-week.json")
	fmt.Println("  adminquery --export orders --format xlsx --output orders.xlsx --upload")
}
