package apilib

import (
	"fmt"
	"os"

	"github.com/blang/semver"
	"github.com/manifoldco/promptui"
	"github.com/pterm/pterm"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
)

const releaseRepository = "transifex/jsonapi-server"

type UpdateCommandArguments struct {
	Version       string
	NoInteractive bool
	Check         bool
	Debug         bool
}

func UpdateCommand(arguments UpdateCommandArguments) error {
	if arguments.Debug {
		selfupdate.EnableLog()
	}

	current, err := semver.Parse(arguments.Version)
	if err != nil {
		return err
	}

	latest, found, err := selfupdate.DetectLatest(releaseRepository)
	if err != nil {
		return err
	}
	if !found || current.GE(latest.Version) {
		fmt.Println("Congratulations, you are up to date with v" + current.String())
		return nil
	}

	fmt.Printf(
		"There is a new latest release for you v%s -> v%s\n",
		current, latest.Version.String(),
	)
	if arguments.Check {
		fmt.Println(
			"Use `apiserver update` or `apiserver update --no-interactive` " +
				"command to update to the latest version.")
		fmt.Println("If you want to download and install it manually, " +
			"you can get the asset from")
		fmt.Println(latest.AssetURL)
		return nil
	}

	if !arguments.NoInteractive {
		prompt := promptui.Prompt{
			Label:     "Do you want to update",
			IsConfirm: true,
		}
		_, err := prompt.Run()
		if err != nil {
			fmt.Println("Update Cancelled")
			return nil
		}
	}

	exe, err := os.Executable()
	if err != nil {
		fmt.Println("Could not locate executable path")
		return err
	}

	spinner, err := pterm.DefaultSpinner.Start(
		fmt.Sprintf("Updating to v%s", latest.Version),
	)
	if err != nil {
		return err
	}
	if err := selfupdate.UpdateTo(latest.AssetURL, exe); err != nil {
		spinner.Fail("Error occurred while updating binary: " + err.Error())
		return err
	}
	spinner.Success(
		fmt.Sprintf("Successfully updated to version v%s", latest.Version),
	)
	return nil
}
