// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "Colsign-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/colsign.log")
	viper.SetDefault("main.log.maxsize", 10485760)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.port", "8080")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "colsign.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "colsign")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.mysql.database", "colsign")

	viper.SetDefault("media.export.path", "media/")
	viper.SetDefault("media.maxuploadsize", 33554432)

	// Countdown length doubles as the recording length per sign category.
	viper.SetDefault("capture.characterseconds", 3)
	viper.SetDefault("capture.wordseconds", 3)
	viper.SetDefault("capture.phraseseconds", 5)
	viper.SetDefault("capture.sessionttl", "10m")

	// The admin review UI pages through unverified submissions three at a time.
	viper.SetDefault("review.pagesize", 3)

	viper.SetDefault("prediction.enabled", false)
	viper.SetDefault("prediction.baseurl", "")
	viper.SetDefault("prediction.timeout", "30s")
	viper.SetDefault("prediction.wordsmodel", "words_v2")

	viper.SetDefault("security.debug", false)
	viper.SetDefault("security.host", "")
	viper.SetDefault("security.redirecttohttps", false)
	viper.SetDefault("security.sessionsecret", "")
	viper.SetDefault("security.sessionduration", "168h")
	viper.SetDefault("security.googleauth.enabled", false)
	viper.SetDefault("security.googleauth.clientid", "")
	viper.SetDefault("security.googleauth.clientsecret", "")
	viper.SetDefault("security.roles.admin", 1)
	viper.SetDefault("security.roles.contributor", 2)
	viper.SetDefault("security.roles.blocked", 3)

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen", "0.0.0.0:8090")
}
