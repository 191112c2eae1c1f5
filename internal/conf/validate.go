// conf/validate.go settings validation
package conf

import (
	"github.com/colsign/colsign-go/internal/errors"
)

// ValidateSettings checks the loaded configuration for inconsistencies that
// would fail later in confusing ways.
func ValidateSettings(settings *Settings) error {
	if settings.WebServer.Enabled && settings.WebServer.Port == "" {
		return errors.Newf("webserver.port must not be empty when the web server is enabled").
			Category(errors.CategoryConfiguration).
			Context("setting", "webserver.port").
			Build()
	}

	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return errors.Newf("only one of output.sqlite and output.mysql may be enabled").
			Category(errors.CategoryConfiguration).
			Context("setting", "output").
			Build()
	}
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return errors.Newf("one of output.sqlite and output.mysql must be enabled").
			Category(errors.CategoryConfiguration).
			Context("setting", "output").
			Build()
	}

	if settings.Media.Export.Path == "" {
		return errors.Newf("media.export.path must not be empty").
			Category(errors.CategoryConfiguration).
			Context("setting", "media.export.path").
			Build()
	}

	if settings.Capture.CharacterSeconds <= 0 || settings.Capture.WordSeconds <= 0 || settings.Capture.PhraseSeconds <= 0 {
		return errors.Newf("capture windows must be positive").
			Category(errors.CategoryConfiguration).
			Context("setting", "capture").
			Build()
	}

	if settings.Review.PageSize <= 0 {
		return errors.Newf("review.pagesize must be positive").
			Category(errors.CategoryConfiguration).
			Context("setting", "review.pagesize").
			Build()
	}

	roles := settings.Security.Roles
	if roles.Admin == roles.Contributor || roles.Admin == roles.Blocked || roles.Contributor == roles.Blocked {
		return errors.Newf("security.roles identifiers must be distinct").
			Category(errors.CategoryConfiguration).
			Context("setting", "security.roles").
			Build()
	}

	if settings.Prediction.Enabled && settings.Prediction.BaseURL == "" {
		return errors.Newf("prediction.baseurl must be set when prediction is enabled").
			Category(errors.CategoryConfiguration).
			Context("setting", "prediction.baseurl").
			Build()
	}

	if settings.Security.GoogleAuth.Enabled {
		if settings.Security.GoogleAuth.ClientID == "" || settings.Security.GoogleAuth.ClientSecret == "" {
			return errors.Newf("security.googleauth requires clientid and clientsecret").
				Category(errors.CategoryConfiguration).
				Context("setting", "security.googleauth").
				Build()
		}
		if settings.Security.Host == "" {
			return errors.Newf("security.host must be set when a social provider is enabled").
				Category(errors.CategoryConfiguration).
				Context("setting", "security.host").
				Build()
		}
	}

	return nil
}
