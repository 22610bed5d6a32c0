// Package cli implements memectl, the operator command line:
//
//	memectl [-a addr] [-k token] [-w seconds] [-c file] <command> [flags]
//
// Commands:
//
//	token      read the server secret without echo and print an operator JWT
//	seed       generate a meme for an agent with the fallback credential
//	reconcile  remove orphaned artifacts left by interrupted generations
package cli
