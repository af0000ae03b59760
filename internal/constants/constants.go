package constants

const USER_AGENT = "mediagate/1.0 (+https://github.com/Amund211/mediagate)"
