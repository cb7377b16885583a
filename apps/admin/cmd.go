package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/virtuallab/core/quiz"
	"github.com/trezcool/virtuallab/core/user"
	"github.com/trezcool/virtuallab/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	gooseRunFunc     = database.RunGoose // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sqlx.DB
	usrSvc   user.Service
	quizRepo quiz.Repository
	validate *validator.Validate
	out      io.Writer
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	out := cli.out
	if out == nil {
		out = os.Stdout
	}
	_, _ = fmt.Fprintf(out, format, args...)
}

func (cli *commandLine) printUsage() {
	cli.printf("Usage:\n")
	cli.printf("  migrate COMMAND [ARGS] - run a goose command (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)\n")
	cli.printf("  adduser -nim NIM -name NAME -email EMAIL - create a student account, the password will be prompted next\n")
	cli.printf("  resetpassword -nim NIM|EMAIL - reset user's password\n")
	cli.printf("  loadquizzes [-file PATH] - upsert the quiz at PATH, or every built-in quiz\n")
}

func (cli *commandLine) promptPassword() (string, error) {
	cli.printf("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserNIM := addUserCmd.String("nim", "", "The student's NIM.")
	addUserName := addUserCmd.String("name", "", "The student's full name.")
	addUserEmail := addUserCmd.String("email", "", "The student's email.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordNIM := resetPasswordCmd.String("nim", "", "The user's NIM or email. The password will be prompted next.")

	loadQuizzesCmd := flag.NewFlagSet("loadquizzes", flag.ExitOnError)
	loadQuizzesFile := loadQuizzesCmd.String("file", "", "A YAML quiz definition. Defaults to the built-in quizzes.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserNIM == "" || *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserNIM, *addUserName, *addUserEmail, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordNIM == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordNIM, pwd)

	case "loadquizzes":
		if err := loadQuizzesCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.loadQuizzes(*loadQuizzesFile)

	default:
		cli.printUsage()
		return errHelp
	}
}
