package apilib

var Version = "0.1.0"
