package cli

const rootLong = `textpool builds pools over delimited text files and answers queries
against them. A pool stores every source in a relational table (SQLite file
or PostgreSQL schema) and keeps a full-text index of the indexed fields.

Each pool lives in <data-dir>/<pool>: info.json, data/ and index/.

Examples:
  textpool index create --info library.json --sources ./csv
  textpool search --in library.Books "author:twain river"
  textpool count "moby or mississippi"
  textpool discover values library.Books --field title --prefix mo
  textpool diff rows library.Books 1 3
  textpool serve --addr :8080`
