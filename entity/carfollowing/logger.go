package carfollowing

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "carfollowing")
