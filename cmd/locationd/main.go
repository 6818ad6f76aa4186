package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/GabrielLeandroBS/locationd/internal/client"
	"github.com/GabrielLeandroBS/locationd/internal/controller"
	"github.com/GabrielLeandroBS/locationd/internal/dto"
	"github.com/GabrielLeandroBS/locationd/internal/repository"
	"github.com/GabrielLeandroBS/locationd/internal/service"
)

const version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "locationd",
	Short: "Single-flight, TTL-cached location retrieval daemon",
	Long:  `locationd keeps one progressively refined location fix per process and serves it to any number of concurrent consumers without redundant provider calls.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket API",
	Run:   runServe,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the current location once and print it",
	Run:   runFetch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

var forceRefresh bool

func init() {
	fetchCmd.Flags().BoolVarP(&forceRefresh, "force", "f", false, "Bypass the cache and fetch a fresh fix")
	rootCmd.AddCommand(serveCmd, fetchCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap assembles the shared engine: one provider, one store, one
// cache stack, one fetch mutex. Everything downstream hangs off the
// returned Services.
func bootstrap() (dto.Config, service.Services) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, relying on process environment")
	}

	config, err := dto.LoadConfig()
	if err != nil {
		logrus.Fatal(err)
	}

	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	clients := client.NewClients(config)
	repositories := repository.NewRepositories(clients.Store())
	services := service.NewServices(repositories, config, clients)
	return config, services
}

func runServe(cmd *cobra.Command, args []string) {
	config, services := bootstrap()

	controllers := controller.NewControllers(services)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	controllers.Route(e)

	logrus.Infof("locationd %s listening on %s", version, config.ListenAddr)
	if err := e.Start(config.ListenAddr); err != nil {
		logrus.Fatal(err)
	}
}

func runFetch(cmd *cobra.Command, args []string) {
	_, services := bootstrap()

	session := services.NewSession()
	defer session.Close()

	if err := session.Refresh(forceRefresh); err != nil {
		snapshot := session.Snapshot()
		fmt.Fprintln(os.Stderr, snapshot.Error)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(awaitAddress(session), "", "  ")
	if err != nil {
		logrus.Fatal(err)
	}
	fmt.Println(string(out))
}

// awaitAddress gives the background address resolution a moment to land
// before the one-shot output is printed.
func awaitAddress(session service.Session) dto.Snapshot {
	snapshot := session.Snapshot()
	if snapshot.Error != "" || snapshot.Coordinate == nil || snapshot.Address != nil {
		return snapshot
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case update, ok := <-session.Updates():
			if !ok {
				return snapshot
			}
			snapshot = update
			if snapshot.Address != nil {
				return snapshot
			}
		case <-deadline:
			return snapshot
		}
	}
}
