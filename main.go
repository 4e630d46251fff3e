package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ConserveLee/pxlreact/app/reactor"
	"github.com/ConserveLee/pxlreact/app/tools"
	"github.com/ConserveLee/pxlreact/internal/config"
	"github.com/ConserveLee/pxlreact/internal/logger"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
)

func main() {
	myApp := app.New()
	myWindow := myApp.NewWindow("pxlreact")
	myWindow.Resize(fyne.NewSize(560, 720))

	logData := binding.NewStringList()
	appLogger := logger.NewAppLogger(logData)

	cfgPath := config.Path()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		appLogger.Error("Config Error: %v (using defaults)", err)
		cfg = config.Default()
	}
	appLogger.SetDebug(cfg.Debug)

	reactorPanel, cleanup := reactor.NewReactorPanel(myWindow, cfg, cfgPath, logData, appLogger)

	tabs := container.NewAppTabs(
		container.NewTabItem("Reactions", reactorPanel),
		container.NewTabItem("Tools", tools.NewToolsPanel(myWindow, cfg.SettleDelay, appLogger)),
	)
	tabs.SetTabLocation(container.TabLocationTop)

	// Release held keys and the screen before the window goes away
	var closeOnce sync.Once
	quit := func() {
		closeOnce.Do(cleanup)
		myApp.Quit()
	}
	myWindow.SetCloseIntercept(quit)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fyne.Do(quit)
	}()

	myWindow.SetContent(tabs)
	myWindow.ShowAndRun()
	closeOnce.Do(cleanup)
}
