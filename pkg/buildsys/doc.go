// Package buildsys turns a Starlark build description (build.star) into compile, archive
// and link commands for C and C++ targets and runs them through a jobs.Scheduler.
//
// Every target is built in two phases. All translation units are compiled in parallel;
// once that batch has drained and every compiler exited cleanly, the objects are
// archived or linked in a second batch. A failing compile stops the target before the
// linker ever runs, but only after all of its units had their chance to report errors.
package buildsys
