package logsvc

import (
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

type rollbarLevel int

const (
	levelDebug rollbarLevel = iota
	levelInfo
	levelWarn
	levelError
	levelCritical
)

var rollbarFuncs = map[rollbarLevel]func(...interface{}){
	levelDebug:    rollbar.Debug,
	levelInfo:     rollbar.Info,
	levelWarn:     rollbar.Warning,
	levelError:    rollbar.Error,
	levelCritical: rollbar.Critical,
}

func initRollbar(conf *core.Config) {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(true)
}

// rollbarArgs sets the logged in User as the rollbar "person" and drops it from args.
func rollbarArgs(msg string, args []interface{}) []interface{} {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		if usr, ok := arg.(user.User); ok {
			if !usrSet { // only set one User
				rollbar.SetPerson(usr.ID, usr.Username, usr.Email)
				usrSet = true
			}
		} else if arg != nil {
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func reportRollbar(level rollbarLevel, msg string, args []interface{}) {
	rollbarFuncs[level](rollbarArgs(msg, args)...)
}

func waitRollbar() {
	rollbar.Wait()
}
